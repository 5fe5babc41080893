// Package telemetry configures OpenTelemetry tracing for the service.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans produced by this module.
const InstrumentationName = "github.com/vinoflow/concierge"

// Config holds telemetry configuration.
type Config struct {
	// ServiceName is the name reported with every span.
	ServiceName string
	// ServiceVersion is the version reported with every span.
	ServiceVersion string
	// Environment is the deployment environment.
	Environment string
	// SampleRate is the trace sampling rate (0.0 to 1.0).
	SampleRate float64
	// OTLPEndpoint is the OTLP collector endpoint (e.g. "localhost:4317").
	OTLPEndpoint string
	// UseConsoleExporter writes traces to stdout instead of the collector.
	UseConsoleExporter bool
}

// DefaultConfig returns the default configuration, honoring the standard
// OTEL_SERVICE_NAME environment variable.
func DefaultConfig() *Config {
	serviceName := "wine-concierge"
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		serviceName = name
	}
	return &Config{
		ServiceName:        serviceName,
		ServiceVersion:     "1.0.0",
		Environment:        "development",
		SampleRate:         1.0,
		OTLPEndpoint:       "localhost:4317",
		UseConsoleExporter: os.Getenv("OTEL_EXPORTER_CONSOLE") == "true",
	}
}

// Init sets up the global tracer provider and returns a shutdown function to
// be called when the application exits.
func Init(cfg *Config) (func(context.Context) error, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if cfg.UseConsoleExporter {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Println("Using console exporter for traces")
	} else {
		exporter, err = otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.Printf("Using OTLP exporter at %s for traces", cfg.OTLPEndpoint)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown, nil
}

// newResource builds the OpenTelemetry resource for this service.
func newResource(cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(cfg.Environment))
	}

	return resource.New(
		context.Background(),
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithProcess(),
	)
}

// Tracer returns the tracer for this module. It resolves through the global
// provider, so spans are no-ops until Init is called.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
