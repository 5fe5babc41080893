// Package server exposes the wine concierge over HTTP: chat, weather, web
// search, knowledge base management, and a websocket chat channel.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vinoflow/concierge/agent"
	"github.com/vinoflow/concierge/config"
	"github.com/vinoflow/concierge/history"
	"github.com/vinoflow/concierge/retrieval"
	"github.com/vinoflow/concierge/search"
	"github.com/vinoflow/concierge/weather"
)

//go:embed static/index.html
var staticFiles embed.FS

// Version reported by the health endpoint.
const Version = "1.0.0"

// pageContentLimit caps the text returned per result when the search
// endpoint is asked to include page content.
const pageContentLimit = 2000

// WebSearcher is the search capability the API exposes. *search.Searcher
// implements it.
type WebSearcher interface {
	Search(ctx context.Context, query string, numResults int) ([]search.Result, error)
	PageContent(ctx context.Context, pageURL string, maxLength int) (string, error)
}

// Server routes API requests to the concierge components.
type Server struct {
	agent     *agent.Agent
	retriever *retrieval.Retriever
	weather   *weather.Service
	searcher  WebSearcher
	history   history.Store
	settings  *config.Settings
	limiter   *ipRateLimiter
}

// New creates a Server. The history store may be nil, in which case sessions
// are not persisted and each request must carry its own transcript.
func New(settings *config.Settings, a *agent.Agent, r *retrieval.Retriever, w *weather.Service, s WebSearcher, h history.Store) *Server {
	return &Server{
		agent:     a,
		retriever: r,
		weather:   w,
		searcher:  s,
		history:   h,
		settings:  settings,
		limiter:   newIPRateLimiter(settings.RateLimit, settings.RateLimitBurst),
	}
}

// ServeHTTP implements http.Handler. Routing is done by path prefix to avoid
// ServeMux redirect behavior.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if !s.limiter.acquire(w, r) {
		return
	}

	start := time.Now()
	path := r.URL.Path

	switch {
	case path == "/" && r.Method == http.MethodGet:
		s.handleIndex(w, r)
	case path == "/api/chat/ws":
		s.handleChatWS(w, r)
	case path == "/api/chat":
		s.requireMethod(w, r, http.MethodPost, s.handleChat)
	case path == "/api/recommend":
		s.requireMethod(w, r, http.MethodPost, s.handleRecommend)
	case path == "/api/weather":
		s.requireMethod(w, r, http.MethodGet, s.handleWeather)
	case path == "/api/search":
		s.requireMethod(w, r, http.MethodGet, s.handleSearch)
	case path == "/api/documents/upload":
		s.requireMethod(w, r, http.MethodPost, s.handleDocumentUpload)
	case path == "/api/health":
		s.handleHealth(w, r)
	default:
		s.writeError(w, http.StatusNotFound, "Not found")
	}

	log.Printf("%s %s %s", r.Method, path, time.Since(start))
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := "*"
	if len(s.settings.CORSOrigins) > 0 && s.settings.CORSOrigins[0] != "*" {
		origin = ""
		reqOrigin := r.Header.Get("Origin")
		for _, o := range s.settings.CORSOrigins {
			if o == reqOrigin {
				origin = o
				break
			}
		}
	}
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string, handler http.HandlerFunc) {
	if r.Method != method {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	handler(w, r)
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.Addr(),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("wine concierge listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "wine-concierge",
		"version": Version,
	})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages  []chatMessage `json:"messages"`
	SessionID string        `json:"session_id"`
	Location  string        `json:"location"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Context   string `json:"context,omitempty"`
	ToolUsed  string `json:"tool_used,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "At least one message is required")
		return
	}

	userMessage := req.Messages[len(req.Messages)-1].Content

	var hist []agent.Message
	sessionID := req.SessionID
	if sessionID != "" && s.history != nil {
		stored, err := s.history.Messages(r.Context(), sessionID)
		if err != nil {
			log.Printf("server: loading history for %s: %v", sessionID, err)
			s.writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
			return
		}
		hist = stored
	} else {
		for _, m := range req.Messages[:len(req.Messages)-1] {
			hist = append(hist, agent.Message{Role: m.Role, Content: m.Content})
		}
	}

	result, err := s.agent.Chat(r.Context(), userMessage, hist, req.Location)
	if err != nil {
		log.Printf("server: chat failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	if s.history != nil {
		if sessionID == "" {
			sessionID = uuid.New().String()
		}
		turn := result.Messages[len(result.Messages)-2:]
		if err := s.history.Append(r.Context(), sessionID, turn...); err != nil {
			log.Printf("server: persisting history for %s: %v", sessionID, err)
		}
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		Response:  result.Reply,
		Context:   result.Context,
		ToolUsed:  string(result.Tool),
		SessionID: sessionID,
	})
}

type recommendRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "A query is required")
		return
	}

	rec, err := s.agent.Recommend(r.Context(), req.Query)
	if err != nil {
		log.Printf("server: recommendation failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	if s.weather == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Weather service is not configured")
		return
	}

	location := r.URL.Query().Get("location")
	if location == "" {
		location = s.settings.DefaultLocation
	}

	rec, err := s.weather.Current(r.Context(), location)
	if err != nil {
		log.Printf("server: weather failed for %q: %v", location, err)
		s.writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	// The record is cached, so the summary call does not refetch.
	summary, err := s.weather.Summary(r.Context(), location)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"weather": summary,
		"data":    rec,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "A query is required")
		return
	}

	numResults := 3
	if n := r.URL.Query().Get("num_results"); n != "" {
		parsed, err := strconv.Atoi(n)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "num_results must be an integer")
			return
		}
		numResults = parsed
	}

	if s.searcher == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Web search is not configured")
		return
	}

	results, err := s.searcher.Search(r.Context(), query, numResults)
	if err != nil {
		log.Printf("server: search failed for %q: %v", query, err)
		s.writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	includeContent := r.URL.Query().Get("include_content") == "true"

	out := make([]map[string]string, 0, len(results))
	for _, res := range results {
		entry := map[string]string{
			"title":   res.Title,
			"url":     res.URL,
			"snippet": res.Snippet,
		}
		if includeContent {
			content, err := s.searcher.PageContent(r.Context(), res.URL, pageContentLimit)
			if err != nil {
				log.Printf("server: page content for %q: %v", res.URL, err)
			} else {
				entry["content"] = content
			}
		}
		out = append(out, entry)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		s.writeError(w, http.StatusServiceUnavailable, "The knowledge base is not configured")
		return
	}

	// A multipart request adds one document; a bare POST rebuilds the whole
	// index from the data directory.
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		s.handleDocumentFile(w, r)
		return
	}

	count, err := s.retriever.Reindex(r.Context())
	if err != nil {
		log.Printf("server: reindex failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	message := fmt.Sprintf("Successfully processed %d document chunks", count)
	if count == 0 {
		message = "No documents found in the data directory"
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":        message,
		"document_count": count,
	})
}

// handleDocumentFile saves an uploaded file into the data directory and
// indexes it without rebuilding the rest of the knowledge base.
func (s *Server) handleDocumentFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "A file field is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !retrieval.SupportedFile(name) {
		s.writeError(w, http.StatusBadRequest, "Unsupported file type")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Could not read the uploaded file")
		return
	}

	dest := filepath.Join(s.settings.DataDir, name)
	if err := os.MkdirAll(s.settings.DataDir, 0o755); err == nil {
		err = os.WriteFile(dest, content, 0o644)
	}
	if err != nil {
		log.Printf("server: saving upload %q: %v", name, err)
		s.writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	count, err := s.retriever.AddDocument(r.Context(), retrieval.NewDocument(name, string(content)))
	if err != nil {
		log.Printf("server: indexing upload %q: %v", name, err)
		s.writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":        fmt.Sprintf("Successfully processed %s into %d chunks", name, count),
		"document_count": count,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"detail": message})
}
