package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Store backends accepted by VECTOR_BACKEND.
const (
	StoreSQLite = "sqlite"
	StoreQdrant = "qdrant"
)

// Defaults applied by FromEnv.
const (
	DefaultStoreDir    = "./promptdoc_user_docs"
	DefaultCollection  = "promptdoc_user_docs"
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 8080
	DefaultQdrantHost  = "localhost"
	DefaultQdrantPort  = 6334
	DefaultMaxUploadMB = 32

	// DefaultChunkOverlap applies whenever PROMPTDOC_CHUNK_OVERLAP is unset,
	// including when only PROMPTDOC_CHUNK_SIZE is given.
	DefaultChunkOverlap = 200
)

// Settings is the resolved runtime configuration of the application, read
// from the environment after Load has applied any YAML file. Provider and
// embedding settings are resolved by their own packages.
type Settings struct {
	// StoreBackend is StoreSQLite or StoreQdrant (VECTOR_BACKEND).
	StoreBackend string
	// StoreDir is the directory of the SQLite store (PROMPTDOC_STORE_DIR).
	StoreDir string

	// QdrantHost is the Qdrant gRPC host (QDRANT_HOST).
	QdrantHost string
	// QdrantPort is the Qdrant gRPC port (QDRANT_PORT).
	QdrantPort int
	// QdrantCollection names the collection holding the chunks.
	QdrantCollection string
	// QdrantAPIKey authenticates against Qdrant Cloud. Empty for local use.
	QdrantAPIKey string
	// QdrantTLS enables TLS on the gRPC connection (QDRANT_TLS=true).
	QdrantTLS bool

	// TopK is the number of chunks retrieved per question. Zero selects the
	// session default.
	TopK int
	// ChunkSize is the chunk length in characters. Zero selects the
	// ingestion default.
	ChunkSize int
	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// It is DefaultChunkOverlap unless PROMPTDOC_CHUNK_OVERLAP is set.
	ChunkOverlap int

	// Host is the address the HTTP server binds to.
	Host string
	// Port is the HTTP server port.
	Port int
	// APIKey is the bearer token required by the API. Empty disables auth.
	APIKey string
	// MaxUploadBytes caps the size of an uploaded document.
	MaxUploadBytes int64
}

// FromEnv reads Settings from the environment. Malformed numbers and an
// unknown store backend are reported together.
func FromEnv() (*Settings, error) {
	var errs []error
	num := func(key string, def int) int {
		v, err := envInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	s := &Settings{
		StoreBackend:     strings.ToLower(envOr("VECTOR_BACKEND", StoreSQLite)),
		StoreDir:         envOr("PROMPTDOC_STORE_DIR", DefaultStoreDir),
		QdrantHost:       envOr("QDRANT_HOST", DefaultQdrantHost),
		QdrantPort:       num("QDRANT_PORT", DefaultQdrantPort),
		QdrantCollection: envOr("QDRANT_COLLECTION", DefaultCollection),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantTLS:        strings.EqualFold(os.Getenv("QDRANT_TLS"), "true"),
		TopK:             num("PROMPTDOC_TOP_K", 0),
		ChunkSize:        num("PROMPTDOC_CHUNK_SIZE", 0),
		ChunkOverlap:     num("PROMPTDOC_CHUNK_OVERLAP", DefaultChunkOverlap),
		Host:             envOr("PROMPTDOC_HOST", DefaultHost),
		Port:             num("PROMPTDOC_PORT", DefaultPort),
		APIKey:           os.Getenv("PROMPTDOC_API_KEY"),
		MaxUploadBytes:   int64(num("PROMPTDOC_MAX_UPLOAD_MB", DefaultMaxUploadMB)) << 20,
	}

	switch s.StoreBackend {
	case StoreSQLite, StoreQdrant:
	default:
		errs = append(errs, fmt.Errorf("config: VECTOR_BACKEND %q: want %s or %s", s.StoreBackend, StoreSQLite, StoreQdrant))
	}
	if s.TopK < 0 {
		errs = append(errs, fmt.Errorf("config: PROMPTDOC_TOP_K must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// envOr returns the value of key, or def when it is unset or empty.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt parses key as an integer, returning def when it is unset.
func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("config: %s=%q is not an integer", key, v)
	}
	return n, nil
}
