// Package history persists conversation transcripts per session. Three
// backends are available: in-memory, SQLite, and PostgreSQL.
package history

import (
	"context"
	"sort"
	"sync"

	"github.com/vinoflow/concierge/agent"
)

// Store persists ordered conversation messages keyed by session ID.
type Store interface {
	// Append adds messages to the end of a session's transcript.
	Append(ctx context.Context, sessionID string, msgs ...agent.Message) error
	// Messages returns a session's transcript in insertion order. An unknown
	// session yields an empty slice.
	Messages(ctx context.Context, sessionID string) ([]agent.Message, error)
	// Clear removes a session's transcript.
	Clear(ctx context.Context, sessionID string) error
	// Sessions lists known session IDs.
	Sessions(ctx context.Context) ([]string, error)
	// Close releases backend resources.
	Close() error
}

// MemoryStore keeps transcripts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]agent.Message
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]agent.Message)}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, sessionID string, msgs ...agent.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msgs...)
	return nil
}

// Messages implements Store.
func (s *MemoryStore) Messages(_ context.Context, sessionID string) ([]agent.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	out := make([]agent.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Sessions implements Store.
func (s *MemoryStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
