package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if s.Port != 8000 {
		t.Errorf("Expected default port 8000, got %d", s.Port)
	}
	if s.LLMBackend != BackendOpenAI {
		t.Errorf("Expected default backend openai, got %s", s.LLMBackend)
	}
	if s.DefaultLocation != "Napa,CA,US" {
		t.Errorf("Unexpected default location %s", s.DefaultLocation)
	}
	if s.RateLimit != 60 {
		t.Errorf("Expected default rate limit 60, got %d", s.RateLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LLM_BACKEND", "ollama")
	t.Setenv("HISTORY_BACKEND", "sqlite")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	s, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if s.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", s.Port)
	}
	if s.LLMBackend != BackendOllama {
		t.Errorf("Expected ollama backend, got %s", s.LLMBackend)
	}
	if s.HistoryBackend != HistorySQLite {
		t.Errorf("Expected sqlite history backend, got %s", s.HistoryBackend)
	}
	if len(s.CORSOrigins) != 2 || s.CORSOrigins[0] != "https://a.example" {
		t.Errorf("Unexpected CORS origins %v", s.CORSOrigins)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("Expected error for malformed PORT")
	}
}

func TestLoadUnknownBackend(t *testing.T) {
	t.Setenv("LLM_BACKEND", "gpt4all")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown LLM_BACKEND")
	}
}

func TestAddr(t *testing.T) {
	s := &Settings{Host: "127.0.0.1", Port: 8000}
	if s.Addr() != "127.0.0.1:8000" {
		t.Errorf("Unexpected addr %s", s.Addr())
	}
}
