package embedder

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/54b3r/promptdoc-go/internal/rag"
)

// Backend names accepted by EMBEDDING_PROVIDER.
const (
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
	BackendOllama = "ollama"
	BackendGemini = "gemini"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "text-embedding-004"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
	// defaultGeminiDimensions is the output dimension of text-embedding-004.
	defaultGeminiDimensions = 768

	// defaultCacheTTL bounds how long a cached embedding is reused.
	defaultCacheTTL = time.Hour
)

// Config is the resolved embedding configuration.
type Config struct {
	// Backend is one of openai, azure, ollama, gemini.
	Backend string
	// Model is the embedding model (Azure: deployment) name.
	Model string
	// APIKey authenticates against hosted backends.
	APIKey string
	// Endpoint is the base URL (OpenAI/Azure) or host (Ollama).
	Endpoint string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Dimensions is the vector size; 0 selects the backend default.
	Dimensions int
	// CacheSize is the number of cached embeddings; 0 disables the cache.
	CacheSize int
	// CacheTTL is how long a cached embedding stays valid. Defaults to 1h.
	CacheTTL time.Duration
}

// DefaultDimensions returns the default embedding vector size for the given
// backend. Callers that need to pre-configure a vector store (e.g. Qdrant
// collection creation) should use this rather than hardcoding a value.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case BackendOllama:
		return defaultOllamaDimensions
	case BackendGemini:
		return defaultGeminiDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// ConfigFromEnv resolves the embedding configuration using cascading defaults
// that inherit from the chat provider configuration when embedding-specific
// overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER, else openai
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS overrides the default dimensions
//  7. EMBEDDING_CACHE_SIZE enables the in-memory LRU cache
func ConfigFromEnv() *Config {
	backend := getEnv("EMBEDDING_PROVIDER")
	if backend == "" {
		backend = getEnvOrDefault("MODEL_PROVIDER", BackendOpenAI)
	}

	cfg := &Config{
		Backend:    backend,
		Model:      getEnv("EMBEDDING_MODEL"),
		APIKey:     getEnv("EMBEDDING_API_KEY"),
		Endpoint:   getEnv("EMBEDDING_ENDPOINT"),
		Dimensions: DefaultDimensions(backend),
		CacheSize:  getEnvInt("EMBEDDING_CACHE_SIZE", 0),
		CacheTTL:   defaultCacheTTL,
	}

	switch backend {
	case BackendOllama:
		cfg.Endpoint = firstNonEmpty(cfg.Endpoint, getEnv("OLLAMA_HOST"), "http://localhost:11434")
		cfg.Model = firstNonEmpty(cfg.Model, defaultOllamaModel)
	case BackendOpenAI:
		cfg.APIKey = firstNonEmpty(cfg.APIKey, getEnv("OPENAI_API_KEY"))
		cfg.Endpoint = firstNonEmpty(cfg.Endpoint, "https://api.openai.com/v1")
		cfg.Model = firstNonEmpty(cfg.Model, defaultOpenAIModel)
	case BackendAzure:
		cfg.APIKey = firstNonEmpty(cfg.APIKey, getEnv("AZURE_OPENAI_API_KEY"))
		cfg.Endpoint = firstNonEmpty(cfg.Endpoint, getEnv("AZURE_OPENAI_ENDPOINT"))
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview")
		cfg.Model = firstNonEmpty(cfg.Model, defaultOpenAIModel)
	case BackendGemini:
		cfg.APIKey = firstNonEmpty(cfg.APIKey, getEnv("GOOGLE_API_KEY"))
		cfg.Model = firstNonEmpty(cfg.Model, defaultGeminiModel)
	}

	return cfg
}

// NewFromEnv constructs a rag.Embedder from ConfigFromEnv.
func NewFromEnv(ctx context.Context) (rag.Embedder, error) {
	return New(ctx, ConfigFromEnv())
}

// New constructs the rag.Embedder described by cfg, wrapped in an LRU cache
// when cfg.CacheSize is positive.
func New(ctx context.Context, cfg *Config) (rag.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var e rag.Embedder
	switch cfg.Backend {
	case BackendOllama:
		e = NewOllamaEmbedder(&OllamaConfig{Host: cfg.Endpoint, Model: cfg.Model})

	case BackendOpenAI:
		e = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})

	case BackendAzure:
		e = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
		})

	case BackendGemini:
		g, err := NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		e = g
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return WithCache(e, cfg.Backend+"/"+cfg.Model, cfg.CacheSize, ttl), nil
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
