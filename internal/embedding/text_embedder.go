package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
)

// TextEmbedder is the Embedder used by the rest of the server. It short-circuits blank text to
// the zero vector, resolves the model through a Lifecycle, and aggregates raw output.
type TextEmbedder struct {
	lifecycle  *Lifecycle
	aggregator *Aggregator
	cache      *EmbeddingCache
	logger     *zap.Logger
}

// TextEmbedderOption configures a TextEmbedder.
type TextEmbedderOption func(*TextEmbedder)

// WithCache enables an LRU cache of the given size keyed by content hash. Size <= 0 disables it.
func WithCache(size int) TextEmbedderOption {
	return func(e *TextEmbedder) {
		if size > 0 {
			e.cache = NewEmbeddingCache(size)
		}
	}
}

// WithLogger sets the logger, which is also used by the aggregator.
func WithLogger(l *zap.Logger) TextEmbedderOption {
	return func(e *TextEmbedder) { e.logger = l }
}

// NewTextEmbedder creates an embedder producing vectors of the given width.
func NewTextEmbedder(lifecycle *Lifecycle, dimensions int, opts ...TextEmbedderOption) *TextEmbedder {
	e := &TextEmbedder{lifecycle: lifecycle, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.aggregator = NewAggregator(dimensions, e.logger)
	return e
}

// Lifecycle returns the lifecycle the embedder resolves its model through.
func (e *TextEmbedder) Lifecycle() *Lifecycle {
	return e.lifecycle
}

// Ready returns nil once the model is loaded, ErrNotReady while it is loading,
// and the *InitError after a failed load.
func (e *TextEmbedder) Ready() error {
	_, err := e.lifecycle.Model()
	return err
}

// Embed returns the embedding for text. Blank text yields the zero vector without touching the
// model. Returned slices may be shared with the cache and must not be modified.
func (e *TextEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return e.aggregator.ZeroVector(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, err := e.lifecycle.Model()
	if err != nil {
		return nil, err
	}
	var key string
	if e.cache != nil {
		key = ContentKey(text)
		if cached, ok := e.cache.Get(key); ok {
			return cached, nil
		}
	}
	out, err := model.Run(ctx, text)
	if err != nil {
		return nil, err
	}
	vec, err := e.aggregator.Aggregate(out)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, vec)
	}
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *TextEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *TextEmbedder) Dimensions() int {
	return e.aggregator.Dimensions()
}

// Close releases the underlying model.
func (e *TextEmbedder) Close() error {
	return e.lifecycle.Close()
}

// ContentKey returns a stable cache key for text.
func ContentKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
