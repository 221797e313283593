// Package rag defines the retrieval side of the document assistant: the
// chunk type, the vector store and embedder contracts, the Qdrant-backed
// store, and the Retriever that turns a question into a context blob.
// Concrete stores satisfy VectorStore so the session layer never depends on a
// specific backend.
package rag

import (
	"context"
	"errors"
	"fmt"
)

// ErrDuplicateChunk is returned by VectorStore.Add when a chunk id is
// already present in the collection or repeated within the batch.
var ErrDuplicateChunk = errors.New("rag: chunk id already exists")

// Chunk is a contiguous segment of a document's text. Chunks are immutable
// once created.
type Chunk struct {
	// ID is unique within a collection: "<documentID>_chunk_<index>".
	ID string

	// DocumentID is the identifier of the document the chunk was cut from.
	DocumentID string

	// Index is the zero-based position of the chunk within its document.
	Index int

	// Offset is the rune offset of the chunk's first character in the document.
	Offset int

	// Content is the chunk text.
	Content string

	// Source is the name of the originating file.
	Source string

	// Score is the similarity to the query vector. Only set by Search.
	Score float32
}

// ChunkID formats the collection-unique identifier of the index-th chunk of
// a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// VectorStore persists chunk embeddings and answers nearest-neighbour
// queries. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Add appends chunks with their pre-computed embeddings. embeddings[i] is
	// the vector for chunks[i]. Adding a chunk whose ID already exists is an
	// error.
	Add(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Search returns up to k chunks ordered by descending similarity to
	// vector.
	Search(ctx context.Context, vector []float32, k int) ([]Chunk, error)

	// Count returns the number of chunks in the collection.
	Count(ctx context.Context) (int, error)

	// Reset discards every chunk and leaves an empty, usable collection.
	Reset(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
