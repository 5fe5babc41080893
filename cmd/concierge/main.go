// Command concierge runs the wine concierge API server.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vinoflow/concierge/agent"
	"github.com/vinoflow/concierge/config"
	"github.com/vinoflow/concierge/history"
	"github.com/vinoflow/concierge/llm"
	"github.com/vinoflow/concierge/retrieval"
	"github.com/vinoflow/concierge/search"
	"github.com/vinoflow/concierge/server"
	"github.com/vinoflow/concierge/telemetry"
	"github.com/vinoflow/concierge/weather"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("concierge: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	shutdownTelemetry, err := telemetry.Init(telemetry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	client, embedder, err := buildLLM(settings)
	if err != nil {
		return err
	}

	store, err := retrieval.OpenVectorStore(settings.VectorDBPath)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer store.Close()
	retriever := retrieval.NewRetriever(settings.DataDir, embedder, store)

	weatherSvc := weather.New(settings.OpenWeatherAPIKey)
	searcher := search.NewSearcher(settings.GoogleSearchAPIKey, settings.GoogleSearchEngineID)

	histStore, err := buildHistory(ctx, settings)
	if err != nil {
		return err
	}
	defer histStore.Close()

	conciergeAgent, err := agent.New(client, retriever, weatherSvc, searcher, agent.Options{
		DefaultLocation: settings.DefaultLocation,
		Temperature:     settings.LLMTemperature,
		MaxTokens:       settings.LLMMaxTokens,
		SearchResults:   settings.SearchMaxResults,
	})
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	srv := server.New(settings, conciergeAgent, retriever, weatherSvc, searcher, histStore)
	return srv.Start(ctx)
}

// buildLLM selects the configured language model backend.
func buildLLM(settings *config.Settings) (llm.Client, llm.Embedder, error) {
	switch settings.LLMBackend {
	case config.BackendOpenAI:
		client, err := llm.NewOpenAIClient(settings.OpenAIAPIKey, settings.OpenAIModel, settings.EmbeddingModel)
		if err != nil {
			return nil, nil, fmt.Errorf("creating OpenAI client: %w", err)
		}
		return client, client, nil
	case config.BackendOllama:
		client := llm.NewOllamaClient(settings.OllamaURL, settings.OllamaModel)
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM backend %q", settings.LLMBackend)
	}
}

// buildHistory selects the configured conversation history backend.
func buildHistory(ctx context.Context, settings *config.Settings) (history.Store, error) {
	switch settings.HistoryBackend {
	case config.HistoryMemory:
		return history.NewMemoryStore(), nil
	case config.HistorySQLite:
		store, err := history.NewSQLiteStore(settings.HistoryDBPath)
		if err != nil {
			return nil, fmt.Errorf("opening SQLite history: %w", err)
		}
		return store, nil
	case config.HistoryPostgres:
		store, err := history.NewPostgresStore(ctx, settings.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to Postgres history: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", settings.HistoryBackend)
	}
}
