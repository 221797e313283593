package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/54b3r/promptdoc-go/internal/logging"
	"github.com/54b3r/promptdoc-go/internal/rag"
)

// CachedEmbedder wraps a rag.Embedder with an expiring LRU keyed by model and
// text. Repeated questions and re-uploads of the same document skip the
// provider call.
type CachedEmbedder struct {
	// next is the wrapped embedder.
	next rag.Embedder
	// model namespaces cache keys so switching models never returns stale vectors.
	model string
	// cache maps sha256(model, text) to the embedding.
	cache *expirable.LRU[string, []float32]
}

// WithCache wraps e in a CachedEmbedder. It returns e unchanged when size or
// ttl is not positive.
func WithCache(e rag.Embedder, model string, size int, ttl time.Duration) rag.Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &CachedEmbedder{
		next:  e,
		model: model,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// Embed returns cached vectors where available and embeds the remaining
// texts in one call to the wrapped embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		keys[i] = c.key(t)
		if v, ok := c.cache.Get(keys[i]); ok {
			out[i] = clone(v)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) > 0 {
		vecs, err := c.next.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missTexts) {
			return nil, fmt.Errorf("embedder: cache: expected %d embeddings, got %d", len(missTexts), len(vecs))
		}
		for j, i := range missIdx {
			out[i] = vecs[j]
			c.cache.Add(keys[i], clone(vecs[j]))
		}
	}

	logging.FromContext(ctx).Debug("embedding cache",
		slog.Int("hits", len(texts)-len(missTexts)),
		slog.Int("misses", len(missTexts)),
	)
	return out, nil
}

// key hashes the model name and text into a fixed-size cache key.
func (c *CachedEmbedder) key(text string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func clone(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
