// Package llm provides language model and embedding clients. The service
// selects a backend (OpenAI or a local Ollama endpoint) by configuration.
package llm

import "context"

// ChatMessage is one turn of a model conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// Options tunes a single generation call.
type Options struct {
	// Temperature controls sampling randomness.
	Temperature float32
	// MaxTokens caps the length of the generated reply. Zero means the
	// backend default.
	MaxTokens int
}

// Client generates chat completions.
type Client interface {
	Chat(ctx context.Context, messages []ChatMessage, opts Options) (string, error)
}

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
