package retrieval

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/vinoflow/concierge/llm"
)

const (
	// DefaultChunkSize is the maximum chunk length in bytes.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of bytes shared between neighbors.
	DefaultChunkOverlap = 200
	// DefaultTopK is the number of chunks returned per query.
	DefaultTopK = 3
)

// Retriever answers similarity queries over the knowledge base. The index is
// built lazily on the first query when the store is empty.
type Retriever struct {
	dataDir      string
	embedder     llm.Embedder
	store        *VectorStore
	chunkSize    int
	chunkOverlap int

	mu      sync.Mutex
	checked bool
}

// NewRetriever creates a Retriever over dataDir backed by store.
func NewRetriever(dataDir string, embedder llm.Embedder, store *VectorStore) *Retriever {
	return &Retriever{
		dataDir:      dataDir,
		embedder:     embedder,
		store:        store,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
}

// Search returns the k most similar chunks to query. k <= 0 uses DefaultTopK.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	if err := r.ensureIndexed(ctx); err != nil {
		return nil, err
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return r.store.Search(ctx, embedding, k)
}

// ensureIndexed builds the index on first use when the store is empty.
func (r *Retriever) ensureIndexed(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.checked {
		return nil
	}

	count, err := r.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("checking index: %w", err)
	}
	if count == 0 {
		if _, err := r.indexLocked(ctx); err != nil {
			return err
		}
	}
	r.checked = true
	return nil
}

// Reindex rebuilds the index from the data directory, replacing whatever was
// stored before. It returns the number of chunks indexed.
func (r *Retriever) Reindex(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}
	n, err := r.indexLocked(ctx)
	if err != nil {
		return 0, err
	}
	r.checked = true
	return n, nil
}

// AddDocument chunks, embeds, and stores a single document without touching
// the rest of the index.
func (r *Retriever) AddDocument(ctx context.Context, doc Document) (int, error) {
	chunks := SplitDocument(doc, r.chunkSize, r.chunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := r.embedAndStore(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (r *Retriever) indexLocked(ctx context.Context) (int, error) {
	docs, err := LoadDocuments(r.dataDir)
	if err != nil {
		return 0, fmt.Errorf("loading documents: %w", err)
	}

	var chunks []Chunk
	for _, doc := range docs {
		chunks = append(chunks, SplitDocument(doc, r.chunkSize, r.chunkOverlap)...)
	}
	if len(chunks) == 0 {
		log.Printf("retrieval: no documents found in %s", r.dataDir)
		return 0, nil
	}

	if err := r.embedAndStore(ctx, chunks); err != nil {
		return 0, err
	}
	log.Printf("retrieval: indexed %d chunks from %d documents", len(chunks), len(docs))
	return len(chunks), nil
}

func (r *Retriever) embedAndStore(ctx context.Context, chunks []Chunk) error {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	return r.store.Store(ctx, chunks)
}
