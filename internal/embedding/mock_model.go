package embedding

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode"
)

// MockModel is a deterministic bag-of-words model for tests and development. Each word maps to
// a one-hot row at HashString(word) % dimensions, so texts that share words are similar and
// texts with no words in common score (almost always) zero.
type MockModel struct {
	dimensions int
	kind       OutputKind
	err        error
	calls      atomic.Int64
}

// MockOption configures a MockModel.
type MockOption func(*MockModel)

// WithFlatOutput makes the mock return pooled vectors instead of a token matrix.
func WithFlatOutput() MockOption {
	return func(m *MockModel) { m.kind = OutputFlat }
}

// WithRunError makes every Run fail with err.
func WithRunError(err error) MockOption {
	return func(m *MockModel) { m.err = err }
}

// NewMockModel returns a mock producing vectors of the given dimensions.
func NewMockModel(dimensions int, opts ...MockOption) *MockModel {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	m := &MockModel{dimensions: dimensions, kind: OutputTokenMatrix}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run returns one row per word, or their mean when configured for flat output.
func (m *MockModel) Run(ctx context.Context, text string) (Output, error) {
	m.calls.Add(1)
	if m.err != nil {
		return Output{}, m.err
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	rows := make([][]float32, len(words))
	for i, w := range words {
		row := make([]float32, m.dimensions)
		row[HashString(w)%m.dimensions] = 1
		rows[i] = row
	}
	if m.kind == OutputFlat {
		pooled, _ := MeanPool(rows)
		return FlatVector(pooled), nil
	}
	return TokenMatrix(rows), nil
}

// Calls returns how many times Run has been invoked.
func (m *MockModel) Calls() int64 {
	return m.calls.Load()
}

// Dimensions returns the embedding dimension.
func (m *MockModel) Dimensions() int {
	return m.dimensions
}

// Close is a no-op for MockModel.
func (m *MockModel) Close() error {
	return nil
}
