package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/promptdoc-go/internal/apperr"
	"github.com/54b3r/promptdoc-go/internal/logging"
)

// ErrEmptyCollection is returned by Retrieve when nothing has been indexed.
var ErrEmptyCollection = errors.New("rag: collection is empty")

// contextSeparator separates chunks in the context blob handed to the model.
const contextSeparator = "\n---\n"

// Retriever combines an Embedder and a VectorStore. It embeds the query at
// retrieval time and delegates similarity search to the store.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a Retriever from the given Embedder and VectorStore.
// defaultTopK sets the fallback result count when k is 0.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Retriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the query and returns up to k chunks ordered by descending
// similarity. It returns ErrEmptyCollection when the collection holds no
// chunks.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = r.defaultTopK
	}

	n, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: count: %w", err)
	}
	if n == 0 {
		return nil, ErrEmptyCollection
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: %w: embedder returned empty result for query", apperr.ErrProvider)
	}

	chunks, err := r.store.Search(ctx, embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyCollection
	}

	return chunks, nil
}

// Query returns the content of the top-k chunks joined by "\n---\n", in the
// order the store ranked them. It never fails: an empty collection yields
// apperr.MsgNotIndexed and any store or provider failure yields
// "Error accessing collection: <detail>".
func (r *Retriever) Query(ctx context.Context, query string, k int) string {
	chunks, err := r.Retrieve(ctx, query, k)
	switch {
	case errors.Is(err, ErrEmptyCollection):
		return apperr.MsgNotIndexed
	case errors.Is(err, apperr.ErrStoreUnavailable):
		logging.FromContext(ctx).Warn("retrieval failed", slog.String("error", err.Error()))
		return apperr.Message(err)
	case err != nil:
		logging.FromContext(ctx).Warn("retrieval failed", slog.String("error", err.Error()))
		return "Error accessing collection: " + err.Error()
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}

	logging.FromContext(ctx).Debug("context retrieved",
		slog.Int("chunks", len(chunks)),
		slog.Float64("top_score", float64(chunks[0].Score)),
	)

	return strings.Join(parts, contextSeparator)
}
