package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/54b3r/promptdoc-go/internal/apperr"
)

// keywordEmbedder scores each text by the presence of fixed keywords, so
// similarity is predictable in tests.
type keywordEmbedder struct {
	keywords []string
	err      error
}

func (k *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(k.keywords))
		for j, kw := range k.keywords {
			v[j] = float32(strings.Count(strings.ToLower(t), kw))
		}
		out[i] = v
	}
	return out, nil
}

// memStore is an in-memory VectorStore ranking by dot product.
type memStore struct {
	chunks   []Chunk
	vecs     [][]float32
	countErr error
}

func (m *memStore) Add(_ context.Context, chunks []Chunk, embeddings [][]float32) error {
	m.chunks = append(m.chunks, chunks...)
	m.vecs = append(m.vecs, embeddings...)
	return nil
}

func (m *memStore) Search(_ context.Context, vector []float32, k int) ([]Chunk, error) {
	out := make([]Chunk, len(m.chunks))
	for i, c := range m.chunks {
		var dot float32
		for j := range vector {
			dot += vector[j] * m.vecs[i][j]
		}
		c.Score = dot
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *memStore) Count(context.Context) (int, error) { return len(m.chunks), m.countErr }
func (m *memStore) Reset(context.Context) error         { m.chunks, m.vecs = nil, nil; return nil }
func (m *memStore) Close() error                        { return nil }

func seed(t *testing.T, emb Embedder, st VectorStore, contents ...string) {
	t.Helper()
	chunks := make([]Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = Chunk{ID: ChunkID("doc", i), DocumentID: "doc", Index: i, Content: c}
	}
	vecs, err := emb.Embed(context.Background(), contents)
	if err != nil {
		t.Fatalf("embed seed: %v", err)
	}
	if err := st.Add(context.Background(), chunks, vecs); err != nil {
		t.Fatalf("add seed: %v", err)
	}
}

func TestNewRetriever_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, &memStore{}, 5); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewRetriever(&keywordEmbedder{}, nil, 5); err == nil {
		t.Error("want error for nil store")
	}
}

func TestRetriever_QueryRanksRelevantChunkFirst(t *testing.T) {
	t.Parallel()

	emb := &keywordEmbedder{keywords: []string{"cat", "dog"}}
	st := &memStore{}
	seed(t, emb, st, "Dogs are loyal. A dog fetches.", "Cats nap all day. The cat purrs.")

	r, err := NewRetriever(emb, st, 5)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	got := r.Query(context.Background(), "Tell me about cats", 5)
	catIdx := strings.Index(got, "Cats nap")
	dogIdx := strings.Index(got, "Dogs are")
	if catIdx < 0 || dogIdx < 0 {
		t.Fatalf("context missing a chunk: %q", got)
	}
	if catIdx > dogIdx {
		t.Errorf("cats chunk should rank before dogs chunk: %q", got)
	}
	if !strings.Contains(got, "\n---\n") {
		t.Errorf("chunks should be joined by separator: %q", got)
	}
}

func TestRetriever_QueryRespectsK(t *testing.T) {
	t.Parallel()

	emb := &keywordEmbedder{keywords: []string{"a"}}
	st := &memStore{}
	seed(t, emb, st, "a", "aa", "aaa")

	r, _ := NewRetriever(emb, st, 5)
	got := r.Query(context.Background(), "a", 2)
	if n := strings.Count(got, "\n---\n"); n != 1 {
		t.Errorf("want 2 chunks (1 separator), got %d separators in %q", n, got)
	}
	if !strings.HasPrefix(got, "aaa") {
		t.Errorf("want best match first, got %q", got)
	}
}

func TestRetriever_QueryEmptyCollection(t *testing.T) {
	t.Parallel()

	r, _ := NewRetriever(&keywordEmbedder{keywords: []string{"x"}}, &memStore{}, 5)
	if got := r.Query(context.Background(), "anything", 5); got != apperr.MsgNotIndexed {
		t.Errorf("want %q, got %q", apperr.MsgNotIndexed, got)
	}

	_, err := r.Retrieve(context.Background(), "anything", 5)
	if !errors.Is(err, ErrEmptyCollection) {
		t.Errorf("want ErrEmptyCollection, got %v", err)
	}
}

func TestRetriever_QueryStoreFailure(t *testing.T) {
	t.Parallel()

	st := &memStore{countErr: fmt.Errorf("store: %w: connection refused", apperr.ErrStoreUnavailable)}
	r, _ := NewRetriever(&keywordEmbedder{keywords: []string{"x"}}, st, 5)

	got := r.Query(context.Background(), "anything", 5)
	if got != "Error accessing collection: connection refused" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestRetriever_QueryEmbedFailure(t *testing.T) {
	t.Parallel()

	emb := &keywordEmbedder{keywords: []string{"x"}}
	st := &memStore{}
	seed(t, emb, st, "x")
	emb.err = errors.New("quota exceeded")

	r, _ := NewRetriever(emb, st, 5)
	got := r.Query(context.Background(), "x", 5)
	if !strings.HasPrefix(got, "Error accessing collection: ") || !strings.Contains(got, "quota exceeded") {
		t.Errorf("unexpected message %q", got)
	}
}

func TestChunkID(t *testing.T) {
	t.Parallel()
	if got := ChunkID("abc", 7); got != "abc_chunk_7" {
		t.Errorf("ChunkID = %q", got)
	}
}
