package history

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vinoflow/concierge/agent"
)

// storeTests exercises the Store contract against any backend.
func storeTests(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("EmptySession", func(t *testing.T) {
		msgs, err := store.Messages(ctx, "unknown")
		if err != nil {
			t.Fatalf("Messages: %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("Expected empty transcript, got %d messages", len(msgs))
		}
	})

	t.Run("AppendAndRead", func(t *testing.T) {
		m1 := agent.NewMessage(agent.RoleUser, "What pairs with duck?")
		m2 := agent.NewMessage(agent.RoleAssistant, "Pinot Noir is a classic choice.")
		if err := store.Append(ctx, "s1", m1, m2); err != nil {
			t.Fatalf("Append: %v", err)
		}

		m3 := agent.NewMessage(agent.RoleUser, "And with lamb?")
		if err := store.Append(ctx, "s1", m3); err != nil {
			t.Fatalf("Append: %v", err)
		}

		msgs, err := store.Messages(ctx, "s1")
		if err != nil {
			t.Fatalf("Messages: %v", err)
		}
		if len(msgs) != 3 {
			t.Fatalf("Expected 3 messages, got %d", len(msgs))
		}
		for i, want := range []string{m1.ID, m2.ID, m3.ID} {
			if msgs[i].ID != want {
				t.Errorf("Message %d out of order: got %s, want %s", i, msgs[i].ID, want)
			}
		}
		if msgs[0].Role != agent.RoleUser || msgs[0].Content != "What pairs with duck?" {
			t.Errorf("Unexpected first message %+v", msgs[0])
		}
	})

	t.Run("SessionIsolation", func(t *testing.T) {
		if err := store.Append(ctx, "s2", agent.NewMessage(agent.RoleUser, "hello")); err != nil {
			t.Fatalf("Append: %v", err)
		}

		msgs, err := store.Messages(ctx, "s2")
		if err != nil {
			t.Fatalf("Messages: %v", err)
		}
		if len(msgs) != 1 {
			t.Errorf("Expected 1 message in s2, got %d", len(msgs))
		}
	})

	t.Run("Sessions", func(t *testing.T) {
		ids, err := store.Sessions(ctx)
		if err != nil {
			t.Fatalf("Sessions: %v", err)
		}
		if len(ids) != 2 || ids[0] != "s1" || ids[1] != "s2" {
			t.Errorf("Unexpected sessions %v", ids)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := store.Clear(ctx, "s1"); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		msgs, err := store.Messages(ctx, "s1")
		if err != nil {
			t.Fatalf("Messages: %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("Expected cleared transcript, got %d messages", len(msgs))
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeTests(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	storeTests(t, store)
}

func TestMemoryStoreConcurrentAppend(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append(ctx, "shared", agent.NewMessage(agent.RoleUser, "hi"))
		}()
	}
	wg.Wait()

	msgs, err := store.Messages(ctx, "shared")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 20 {
		t.Errorf("Expected 20 messages, got %d", len(msgs))
	}
}
