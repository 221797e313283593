package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/54b3r/promptdoc-go/internal/logging"
	"github.com/54b3r/promptdoc-go/internal/rag"
)

// DefaultBatchSize is the number of chunks embedded per provider call.
const DefaultBatchSize = 64

// Config holds the configuration for the Indexer.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Defaults to 200 when both ChunkSize and ChunkOverlap are zero.
	ChunkOverlap int

	// BatchSize is the number of chunks embedded per provider call.
	// Defaults to 64 if zero.
	BatchSize int
}

// Indexer embeds chunks and appends them to the vector store. The store is
// reset exactly once per Indexer, on the first ResetIfFirstInSession call.
type Indexer struct {
	// embedder converts chunk text into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved indexer configuration.
	cfg *Config

	// mu serialises the first-use reset against concurrent uploads.
	mu sync.Mutex

	// resetDone records whether this session already reset the store.
	resetDone bool
}

// NewIndexer constructs an Indexer from the provided dependencies and config.
func NewIndexer(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Indexer, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize == 0 && cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	cfg.ChunkSize, cfg.ChunkOverlap = NormalizeSizes(cfg.ChunkSize, cfg.ChunkOverlap)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Indexer{embedder: embedder, store: store, cfg: cfg}, nil
}

// ChunkSizes returns the resolved chunk size and overlap.
func (ix *Indexer) ChunkSizes() (size, overlap int) {
	return ix.cfg.ChunkSize, ix.cfg.ChunkOverlap
}

// Store returns the vector store the indexer writes to.
func (ix *Indexer) Store() rag.VectorStore {
	return ix.store
}

// ResetIfFirstInSession clears the store the first time it is called and is
// a no-op afterwards. A failed reset is logged and not retried; indexing
// continues against whatever the store now holds.
func (ix *Indexer) ResetIfFirstInSession(ctx context.Context) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.resetDone {
		return
	}
	ix.resetDone = true

	logger := logging.FromContext(ctx)
	if err := ix.store.Reset(ctx); err != nil {
		logger.Warn("vector store reset failed, continuing",
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("vector store reset for new session")
}

// AddChunks embeds chunks in batches and appends them to the store. It never
// removes existing chunks. On error, batches already written stay in the
// store.
func (ix *Indexer) AddChunks(ctx context.Context, chunks []rag.Chunk) error {
	for start := 0; start < len(chunks); start += ix.cfg.BatchSize {
		end := min(start+ix.cfg.BatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		embeddings, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("ingestion: embedding failed: %w", err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("ingestion: embedder returned %d vectors for %d chunks", len(embeddings), len(batch))
		}

		if err := ix.store.Add(ctx, batch, embeddings); err != nil {
			return fmt.Errorf("ingestion: add failed: %w", err)
		}
	}

	logging.FromContext(ctx).Info("chunks indexed", slog.Int("chunks", len(chunks)))
	return nil
}
