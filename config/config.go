// Package config loads service settings from the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LLM backend selectors.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// History backend selectors.
const (
	HistoryMemory   = "memory"
	HistorySQLite   = "sqlite"
	HistoryPostgres = "postgres"
)

// Settings holds the full service configuration.
type Settings struct {
	Host string
	Port int

	Debug       bool
	CORSOrigins []string

	// Language model backend
	LLMBackend     string
	OpenAIAPIKey   string
	OpenAIModel    string
	OllamaURL      string
	OllamaModel    string
	LLMTemperature float32
	LLMMaxTokens   int

	// Embeddings
	EmbeddingModel string

	// Weather
	OpenWeatherAPIKey string
	DefaultLocation   string

	// Web search
	GoogleSearchAPIKey   string
	GoogleSearchEngineID string
	SearchMaxResults     int

	// Knowledge base
	DataDir      string
	VectorDBPath string

	// Conversation history
	HistoryBackend string
	HistoryDBPath  string
	PostgresURL    string

	// Rate limiting (requests per minute per client)
	RateLimit      int
	RateLimitBurst int
}

// Load reads settings from the environment, applying defaults for anything
// unset. It returns an error for values that fail to parse.
func Load() (*Settings, error) {
	s := &Settings{
		Host:                 getenv("HOST", "0.0.0.0"),
		LLMBackend:           getenv("LLM_BACKEND", BackendOpenAI),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:          getenv("OPENAI_MODEL", "gpt-4-turbo-preview"),
		OllamaURL:            getenv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:          getenv("OLLAMA_MODEL", "llama3.2"),
		EmbeddingModel:       getenv("EMBEDDING_MODEL", "text-embedding-3-small"),
		OpenWeatherAPIKey:    os.Getenv("OPENWEATHER_API_KEY"),
		DefaultLocation:      getenv("DEFAULT_LOCATION", "Napa,CA,US"),
		GoogleSearchAPIKey:   os.Getenv("GOOGLE_SEARCH_API_KEY"),
		GoogleSearchEngineID: os.Getenv("GOOGLE_SEARCH_ENGINE_ID"),
		DataDir:              getenv("DATA_DIR", "./data"),
		VectorDBPath:         getenv("VECTOR_DB_PATH", "./data/vectors.db"),
		HistoryBackend:       getenv("HISTORY_BACKEND", HistoryMemory),
		HistoryDBPath:        getenv("HISTORY_DB_PATH", "./data/history.db"),
		PostgresURL:          os.Getenv("POSTGRES_URL"),
	}

	var err error
	if s.Port, err = getenvInt("PORT", 8000); err != nil {
		return nil, err
	}
	if s.RateLimit, err = getenvInt("RATE_LIMIT", 60); err != nil {
		return nil, err
	}
	if s.RateLimitBurst, err = getenvInt("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}
	if s.SearchMaxResults, err = getenvInt("SEARCH_MAX_RESULTS", 5); err != nil {
		return nil, err
	}
	if s.LLMMaxTokens, err = getenvInt("LLM_MAX_TOKENS", 1000); err != nil {
		return nil, err
	}

	temp, err := getenvFloat("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return nil, err
	}
	s.LLMTemperature = float32(temp)

	s.Debug = getenv("DEBUG", "false") == "true"

	origins := getenv("CORS_ORIGINS", "*")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			s.CORSOrigins = append(s.CORSOrigins, o)
		}
	}

	switch s.LLMBackend {
	case BackendOpenAI, BackendOllama:
	default:
		return nil, fmt.Errorf("unknown LLM_BACKEND %q", s.LLMBackend)
	}

	switch s.HistoryBackend {
	case HistoryMemory, HistorySQLite, HistoryPostgres:
	default:
		return nil, fmt.Errorf("unknown HISTORY_BACKEND %q", s.HistoryBackend)
	}

	return s, nil
}

// Addr returns the host:port listen address.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
