// Package weather fetches current conditions from OpenWeatherMap and renders
// them as summaries with wine pairing advice.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/vinoflow/concierge/cache"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("weather service is not configured: missing API key")

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
	cacheTTL       = 30 * time.Minute
	cacheCapacity  = 128
)

// Record holds the conditions for one location at one point in time.
type Record struct {
	Location    string    `json:"location"`
	Temperature int       `json:"temperature"`
	FeelsLike   int       `json:"feels_like"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Sunrise     string    `json:"sunrise"`
	Sunset      string    `json:"sunset"`
	Timestamp   time.Time `json:"timestamp"`
}

// Service queries OpenWeatherMap with a 30 minute cache per location.
type Service struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cache   *cache.Cache[Record]
	now     func() time.Time
}

// New creates a Service. An empty apiKey is allowed; calls will then return
// ErrNotConfigured.
func New(apiKey string) *Service {
	return &Service{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   cache.New[Record](cacheCapacity, cacheTTL),
		now:     time.Now,
	}
}

// openWeatherResponse mirrors the subset of the OpenWeatherMap current
// weather payload the service reads.
type openWeatherResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
}

// Current returns the weather for location, which is a city plus optional
// state and country codes ("Napa,CA,US"). Results are cached for 30 minutes.
func (s *Service) Current(ctx context.Context, location string) (Record, error) {
	if s.apiKey == "" {
		return Record{}, ErrNotConfigured
	}

	cacheKey := "weather_" + location
	if rec, ok := s.cache.Get(cacheKey); ok {
		return rec, nil
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", s.apiKey)
	q.Set("units", "imperial")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Record{}, fmt.Errorf("creating weather request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("fetching weather for %q: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Record{}, fmt.Errorf("weather API returned status %d for %q", resp.StatusCode, location)
	}

	var payload openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Record{}, fmt.Errorf("decoding weather response: %w", err)
	}
	if len(payload.Weather) == 0 {
		return Record{}, fmt.Errorf("weather response for %q has no conditions", location)
	}

	rec := Record{
		Location:    fmt.Sprintf("%s, %s", nameOrUnknown(payload.Name), payload.Sys.Country),
		Temperature: int(math.Round(payload.Main.Temp)),
		FeelsLike:   int(math.Round(payload.Main.FeelsLike)),
		Humidity:    payload.Main.Humidity,
		WindSpeed:   math.Round(payload.Wind.Speed*10) / 10,
		Description: capitalize(payload.Weather[0].Description),
		Icon:        payload.Weather[0].Icon,
		Sunrise:     time.Unix(payload.Sys.Sunrise, 0).Format("15:04"),
		Sunset:      time.Unix(payload.Sys.Sunset, 0).Format("15:04"),
		Timestamp:   s.now(),
	}

	s.cache.Put(cacheKey, rec)
	log.Printf("weather: fetched conditions for %s (%d°F)", rec.Location, rec.Temperature)
	return rec, nil
}

// Summary returns a human-readable description of the current weather in
// location, followed by pairing advice keyed to the temperature.
func (s *Service) Summary(ctx context.Context, location string) (string, error) {
	rec, err := s.Current(ctx, location)
	if err != nil {
		return "", err
	}

	summary := fmt.Sprintf(
		"Current weather in %s: %s with a temperature of %d°F (feels like %d°F). "+
			"Humidity is at %d%% and wind speed is %.1f mph. "+
			"Sunrise was at %s and sunset will be at %s.",
		rec.Location, rec.Description, rec.Temperature, rec.FeelsLike,
		rec.Humidity, rec.WindSpeed, rec.Sunrise, rec.Sunset,
	)
	return summary + " " + PairingAdvice(rec.Temperature), nil
}

// PairingAdvice suggests a style of wine for the given temperature in
// Fahrenheit.
func PairingAdvice(tempF int) string {
	switch {
	case tempF > 80:
		return "It's quite warm - a chilled white or rosé wine would be refreshing!"
	case tempF < 50:
		return "It's a bit chilly - perfect for a bold red wine to warm you up!"
	default:
		return "The weather is pleasant - a nice medium-bodied wine would be perfect!"
	}
}

func nameOrUnknown(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - 'a' + 'A'
	}
	return string(r)
}
