package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/certiquest/internal/catalog"
	"github.com/hyperjump/certiquest/internal/config"
	"github.com/hyperjump/certiquest/internal/embedding"
	"github.com/hyperjump/certiquest/internal/importer"
	"github.com/hyperjump/certiquest/internal/keyword"
	"github.com/hyperjump/certiquest/internal/recommend"
	"github.com/hyperjump/certiquest/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Storage      *storage.SQLiteStorage
	KeywordIndex *keyword.BleveIndex
	Lifecycle    *embedding.Lifecycle
	Embedder     *embedding.TextEmbedder
	Catalog      *catalog.Service
	Recommender  *recommend.Service
	Importer     *importer.Importer
}

// Close releases the model, the index and the database.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// initializeComponents wires storage, search, and the recommendation pipeline.
// The embedding model is not loaded; call Lifecycle.Start or Initialize.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	kwIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	lifecycle := embedding.NewLifecycle(newModelLoader(cfg.Embedding, logger), embedding.WithLifecycleLogger(logger))
	embedder := embedding.NewTextEmbedder(
		lifecycle,
		cfg.Embedding.Dimensions,
		embedding.WithCache(cfg.Embedding.CacheSize),
		embedding.WithLogger(logger),
	)

	cat := catalog.NewService(store, store, catalog.WithIndex(kwIndex), catalog.WithLogger(logger))
	rec := recommend.NewService(cat, cat, embedder, recommend.Config{
		TopK:    cfg.Recommend.TopK,
		Workers: cfg.Recommend.Workers,
		Timeout: cfg.Recommend.Timeout,
	}, logger)

	return &Components{
		Storage:      store,
		KeywordIndex: kwIndex,
		Lifecycle:    lifecycle,
		Embedder:     embedder,
		Catalog:      cat,
		Recommender:  rec,
		Importer:     importer.New(cat, logger),
	}, nil
}

// newModelLoader returns the loader for the configured provider. Nothing is
// loaded until the lifecycle runs it.
func newModelLoader(cfg config.EmbeddingConfig, logger *zap.Logger) embedding.Loader {
	switch cfg.Provider {
	case config.ProviderMock:
		logger.Warn("using mock embedding model; recommendations are bag-of-words only")
		return embedding.StaticLoader(embedding.NewMockModel(cfg.Dimensions))
	case config.ProviderOpenAI:
		return func(ctx context.Context) (embedding.Model, error) {
			model, err := embedding.NewOpenAIModel(embedding.OpenAIConfig{
				APIKey:     cfg.APIKey,
				Model:      cfg.OpenAIModel,
				BaseURL:    cfg.BaseURL,
				Dimensions: cfg.Dimensions,
			})
			if err != nil {
				return nil, err
			}
			probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := model.Probe(probeCtx); err != nil {
				return nil, fmt.Errorf("OpenAI embeddings probe failed: %w", err)
			}
			return model, nil
		}
	case config.ProviderONNX:
		return func(context.Context) (embedding.Model, error) {
			var tokenizer embedding.Tokenizer
			if cfg.VocabPath != "" {
				wp, err := embedding.LoadWordPieceTokenizer(cfg.VocabPath)
				if err != nil {
					return nil, fmt.Errorf("failed to load vocabulary: %w", err)
				}
				tokenizer = wp
			} else {
				logger.Warn("no vocab_path configured; using the hash tokenizer")
			}
			return embedding.NewONNXModel(embedding.ONNXConfig{
				ModelPath:         cfg.ModelPath,
				SharedLibraryPath: cfg.SharedLibraryPath,
				OutputName:        cfg.OutputName,
				OutputKind:        embedding.ParseOutputKind(cfg.OutputKind),
				Dimensions:        cfg.Dimensions,
				MaxTokens:         cfg.MaxTokens,
				Tokenizer:         tokenizer,
			})
		}
	default:
		return func(context.Context) (embedding.Model, error) {
			return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
		}
	}
}
