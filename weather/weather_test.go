package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func weatherPayload(temp float64) string {
	return fmt.Sprintf(`{
		"name": "Napa",
		"main": {"temp": %f, "feels_like": %f, "humidity": 55},
		"wind": {"speed": 4.63},
		"weather": [{"description": "clear sky", "icon": "01d"}],
		"sys": {"country": "US", "sunrise": 1700000000, "sunset": 1700040000}
	}`, temp, temp)
}

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := New("test-key")
	s.baseURL = srv.URL
	return s
}

func TestCurrentNotConfigured(t *testing.T) {
	s := New("")
	if _, err := s.Current(context.Background(), "Napa,CA,US"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestCurrentParsesResponse(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("units"); got != "imperial" {
			t.Errorf("Expected imperial units, got %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "Napa,CA,US" {
			t.Errorf("Unexpected location query %q", got)
		}
		fmt.Fprint(w, weatherPayload(72.4))
	})

	rec, err := s.Current(context.Background(), "Napa,CA,US")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rec.Location != "Napa, US" {
		t.Errorf("Unexpected location %q", rec.Location)
	}
	if rec.Temperature != 72 {
		t.Errorf("Expected rounded temperature 72, got %d", rec.Temperature)
	}
	if rec.WindSpeed != 4.6 {
		t.Errorf("Expected wind speed 4.6, got %v", rec.WindSpeed)
	}
	if rec.Description != "Clear sky" {
		t.Errorf("Expected capitalized description, got %q", rec.Description)
	}
}

func TestCurrentCachesWithin30Minutes(t *testing.T) {
	calls := 0
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, weatherPayload(65))
	})

	base := time.Now()
	clock := base
	s.cache.SetClock(func() time.Time { return clock })

	if _, err := s.Current(context.Background(), "Napa,CA,US"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	clock = base.Add(29 * time.Minute)
	if _, err := s.Current(context.Background(), "Napa,CA,US"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("Expected cached result within TTL, got %d upstream calls", calls)
	}

	clock = base.Add(31 * time.Minute)
	if _, err := s.Current(context.Background(), "Napa,CA,US"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected refetch after TTL, got %d upstream calls", calls)
	}
}

func TestCurrentUpstreamError(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "city not found", http.StatusNotFound)
	})

	if _, err := s.Current(context.Background(), "Nowhere"); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestSummaryAdviceBands(t *testing.T) {
	tests := []struct {
		temp float64
		want string
	}{
		{85, "chilled white or rosé"},
		{45, "bold red wine"},
		{65, "medium-bodied wine"},
		{80, "medium-bodied wine"},
		{50, "medium-bodied wine"},
	}

	for _, tt := range tests {
		s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, weatherPayload(tt.temp))
		})
		summary, err := s.Summary(context.Background(), "Napa,CA,US")
		if err != nil {
			t.Fatalf("temp %v: unexpected error: %v", tt.temp, err)
		}
		if !strings.Contains(summary, tt.want) {
			t.Errorf("temp %v: summary %q does not mention %q", tt.temp, summary, tt.want)
		}
		if !strings.Contains(summary, "Current weather in Napa, US") {
			t.Errorf("temp %v: summary missing conditions: %q", tt.temp, summary)
		}
	}
}
