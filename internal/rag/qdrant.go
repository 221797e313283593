package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/promptdoc-go/internal/apperr"
)

// Payload keys stored alongside each Qdrant point.
const (
	payloadChunkID    = "chunk_id"
	payloadDocumentID = "document_id"
	payloadIndex      = "chunk_index"
	payloadOffset     = "offset"
	payloadContent    = "content"
	payloadSource     = "source"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant collection.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig

	// resetMu serialises Reset against Add so no points are written into a
	// collection that is being dropped.
	resetMu sync.RWMutex
}

// NewQdrantStore creates a QdrantStore, ensuring the target collection exists
// (creating it if necessary).
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name must not be empty")
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be set")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: %w: create client: %v", apperr.ErrStoreUnavailable, err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// Client exposes the gRPC client for readiness checks.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: %w: check collection: %v", apperr.ErrStoreUnavailable, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: %w: create collection %q: %v", apperr.ErrStoreUnavailable, s.cfg.Collection, err)
	}

	return nil
}

// pointID derives a stable UUID for a chunk id. Qdrant only accepts unsigned
// integers or UUIDs as point ids; the original chunk id is kept in the payload.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// Add appends chunks and their embeddings to the collection.
func (s *QdrantStore) Add(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	s.resetMu.RLock()
	defer s.resetMu.RUnlock()

	ids := make([]*qdrant.PointId, len(chunks))
	for i, c := range chunks {
		ids[i] = qdrant.NewIDUUID(pointID(c.ID))
	}
	existing, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return fmt.Errorf("qdrant: %w: lookup: %v", apperr.ErrStoreUnavailable, err)
	}
	if err := checkNewChunks(chunks, existing); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      ids[i],
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadChunkID:    c.ID,
				payloadDocumentID: c.DocumentID,
				payloadIndex:      int64(c.Index),
				payloadOffset:     int64(c.Offset),
				payloadContent:    c.Content,
				payloadSource:     c.Source,
			}),
		})
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: %w: upsert: %v", apperr.ErrStoreUnavailable, err)
	}

	return nil
}

// checkNewChunks fails with ErrDuplicateChunk when a chunk id repeats within
// chunks or maps to one of the already stored points.
func checkNewChunks(chunks []Chunk, existing []*qdrant.RetrievedPoint) error {
	byPoint := make(map[string]string, len(chunks))
	for _, c := range chunks {
		pid := pointID(c.ID)
		if _, dup := byPoint[pid]; dup {
			return fmt.Errorf("qdrant: %w: %s repeated in batch", ErrDuplicateChunk, c.ID)
		}
		byPoint[pid] = c.ID
	}
	for _, p := range existing {
		if id, ok := byPoint[p.GetId().GetUuid()]; ok {
			return fmt.Errorf("qdrant: %w: %s", ErrDuplicateChunk, id)
		}
	}
	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	limit := uint64(k)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: %w: search: %v", apperr.ErrStoreUnavailable, err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		c := Chunk{Score: r.GetScore()}
		p := r.GetPayload()
		c.ID = p[payloadChunkID].GetStringValue()
		c.DocumentID = p[payloadDocumentID].GetStringValue()
		c.Index = int(p[payloadIndex].GetIntegerValue())
		c.Offset = int(p[payloadOffset].GetIntegerValue())
		c.Content = p[payloadContent].GetStringValue()
		c.Source = p[payloadSource].GetStringValue()
		chunks = append(chunks, c)
	}

	return chunks, nil
}

// Count returns the exact number of points in the collection. A missing
// collection counts as empty.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return 0, fmt.Errorf("qdrant: %w: check collection: %v", apperr.ErrStoreUnavailable, err)
	}
	if !exists {
		return 0, nil
	}

	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: %w: count: %v", apperr.ErrStoreUnavailable, err)
	}
	return int(n), nil
}

// Reset drops the collection and recreates it empty.
func (s *QdrantStore) Reset(ctx context.Context) error {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()

	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: %w: check collection: %v", apperr.ErrStoreUnavailable, err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
			return fmt.Errorf("qdrant: %w: delete collection %q: %v", apperr.ErrStoreUnavailable, s.cfg.Collection, err)
		}
	}
	return s.ensureCollection(ctx)
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
