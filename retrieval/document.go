// Package retrieval implements the wine knowledge base: document loading,
// chunking, embedding, and similarity search over a persistent vector store.
package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Document is one source file from the knowledge base directory.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a slice of a document with its embedding.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Index      int
	Embedding  []float32
}

// supportedExtensions lists the plain-text formats the loader reads.
var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
}

// LoadDocuments walks dataDir recursively and reads every supported file.
// A missing directory is created and yields no documents.
func LoadDocuments(dataDir string) ([]Document, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	var docs []Document
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			rel = path
		}
		docs = append(docs, Document{
			ID:      documentID(rel),
			Path:    rel,
			Content: string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func documentID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

// NewDocument builds a Document for a single file, using the same ID scheme
// as the loader so a later reindex replaces rather than duplicates it.
func NewDocument(path, content string) Document {
	return Document{ID: documentID(path), Path: path, Content: content}
}

// SupportedFile reports whether the loader would index a file with this name.
func SupportedFile(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// SplitDocument splits a document into chunks of at most chunkSize bytes,
// overlapping by overlap bytes, breaking at word boundaries where possible.
func SplitDocument(doc Document, chunkSize, overlap int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 200
	}

	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return nil
	}

	var chunks []Chunk
	start := 0
	index := 0

	for start < len(content) {
		end := start + chunkSize
		if end > len(content) {
			end = len(content)
		}

		if end < len(content) {
			if lastSpace := strings.LastIndex(content[start:end], " "); lastSpace > 0 {
				end = start + lastSpace
			}
		}

		chunkContent := strings.TrimSpace(content[start:end])
		if chunkContent != "" {
			chunks = append(chunks, Chunk{
				ID:         fmt.Sprintf("%s-%d", doc.ID, index),
				DocumentID: doc.ID,
				Content:    chunkContent,
				Index:      index,
			})
			index++
		}

		if end == len(content) {
			break
		}
		// Always move forward even when the word boundary lands inside the
		// overlap window.
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
