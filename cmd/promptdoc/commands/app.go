package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/promptdoc-go/internal/completion"
	"github.com/54b3r/promptdoc-go/internal/config"
	"github.com/54b3r/promptdoc-go/internal/document"
	"github.com/54b3r/promptdoc-go/internal/embedder"
	"github.com/54b3r/promptdoc-go/internal/ingestion"
	"github.com/54b3r/promptdoc-go/internal/provider"
	"github.com/54b3r/promptdoc-go/internal/rag"
	"github.com/54b3r/promptdoc-go/internal/server"
	"github.com/54b3r/promptdoc-go/internal/session"
	"github.com/54b3r/promptdoc-go/internal/store"
)

// app is the fully wired document session shared by serve and chat.
type app struct {
	// settings is the resolved runtime configuration.
	settings *config.Settings
	// controller owns the document session.
	controller *session.Controller
	// pingers check the store and the model for GET /api/ready.
	pingers []server.Pinger
	// store is closed by Close.
	store rag.VectorStore
}

// Close releases the vector store.
func (a *app) Close() error {
	return a.store.Close()
}

// buildApp resolves configuration from the environment and constructs the
// model, embedder, vector store and session controller.
func buildApp(ctx context.Context, log *slog.Logger) (*app, error) {
	settings, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	embedCfg := embedder.ConfigFromEnv()
	embedCfg.WarnIfMisconfigured(log, os.Getenv("EMBEDDING_PROVIDER") != "")
	emb, err := embedder.New(ctx, embedCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("backend", embedCfg.Backend),
		slog.String("model", embedCfg.Model),
		slog.Int("cache_size", embedCfg.CacheSize),
	)

	vs, storePinger, err := openStore(ctx, settings, embedCfg.Dimensions)
	if err != nil {
		return nil, err
	}
	log.Info("vector store opened", slog.String("backend", settings.StoreBackend))

	a, err := wire(vs, emb, chatModel, providerCfg.SupportsTemperature(), settings)
	if err != nil {
		_ = vs.Close()
		return nil, err
	}

	a.pingers = []server.Pinger{
		storePinger,
		server.NewLLMPinger(chatModel, providerCfg.HealthCheck(), string(providerCfg.Backend)),
	}
	return a, nil
}

// wire assembles the session controller on top of an open store.
func wire(vs rag.VectorStore, emb rag.Embedder, m model.BaseChatModel, supportsTemp bool, settings *config.Settings) (*app, error) {
	indexer, err := ingestion.NewIndexer(emb, vs, &ingestion.Config{
		ChunkSize:    settings.ChunkSize,
		ChunkOverlap: settings.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}
	retriever, err := rag.NewRetriever(emb, vs, settings.TopK)
	if err != nil {
		return nil, err
	}
	svc, err := completion.NewService(m, supportsTemp)
	if err != nil {
		return nil, err
	}
	controller, err := session.NewController(document.NewReader(), indexer, retriever, svc, &session.Config{
		TopK: settings.TopK,
	})
	if err != nil {
		return nil, err
	}
	return &app{settings: settings, controller: controller, store: vs}, nil
}

// openStore opens the configured vector store and a readiness check for it.
func openStore(ctx context.Context, s *config.Settings, dims int) (rag.VectorStore, server.Pinger, error) {
	switch s.StoreBackend {
	case config.StoreQdrant:
		qs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       s.QdrantHost,
			Port:       s.QdrantPort,
			Collection: s.QdrantCollection,
			VectorSize: uint64(dims),
			APIKey:     s.QdrantAPIKey,
			UseTLS:     s.QdrantTLS,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		return qs, server.NewQdrantPinger(qs.Client()), nil
	case config.StoreSQLite:
		ss, err := store.Open(s.StoreDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open vector store: %w", err)
		}
		return ss, server.NewStorePinger(ss, config.StoreSQLite), nil
	default:
		return nil, nil, errors.New("unknown vector store backend " + s.StoreBackend)
	}
}
