package embedding

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Aggregator normalizes raw model output into a single vector of fixed width.
type Aggregator struct {
	dimensions int
	logger     *zap.Logger
	emptyOnce  sync.Once
}

// NewAggregator returns an aggregator producing vectors of the given width.
// A nil logger disables the empty-output warning.
func NewAggregator(dimensions int, logger *zap.Logger) *Aggregator {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{dimensions: dimensions, logger: logger}
}

// Dimensions returns the output width.
func (a *Aggregator) Dimensions() int {
	return a.dimensions
}

// ZeroVector returns a new all-zero vector of the output width.
func (a *Aggregator) ZeroVector() []float32 {
	return make([]float32, a.dimensions)
}

// Aggregate mean-pools a token matrix or copies a flat vector. Empty output falls back to the
// zero vector; the fallback is logged once per Aggregator.
func (a *Aggregator) Aggregate(out Output) ([]float32, error) {
	if out.Empty() {
		a.emptyOnce.Do(func() {
			a.logger.Warn("embedding model returned empty output; using zero vector",
				zap.String("kind", out.Kind.String()))
		})
		return a.ZeroVector(), nil
	}
	var vec []float32
	switch out.Kind {
	case OutputTokenMatrix:
		pooled, err := MeanPool(out.Tokens)
		if err != nil {
			return nil, err
		}
		vec = pooled
	default:
		vec = make([]float32, len(out.Flat))
		copy(vec, out.Flat)
	}
	if len(vec) != a.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(vec), a.dimensions)
	}
	return vec, nil
}

// MeanPool averages token vectors elementwise. All rows must have the same width.
func MeanPool(tokens [][]float32) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	dims := len(tokens[0])
	sum := make([]float64, dims)
	for i, row := range tokens {
		if len(row) != dims {
			return nil, fmt.Errorf("token %d has width %d, expected %d", i, len(row), dims)
		}
		for j, v := range row {
			sum[j] += float64(v)
		}
	}
	n := float64(len(tokens))
	out := make([]float32, dims)
	for j, s := range sum {
		out[j] = float32(s / n)
	}
	return out, nil
}
