// Package embedding turns text into fixed-length vectors using a pretrained model that is
// loaded once per process.
package embedding

import "context"

// DefaultDimensions is the output width of all-MiniLM-L6-v2, the default model.
const DefaultDimensions = 384

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Model is a loaded feature-extraction model. Run returns the raw model output, which is
// either per-token or already pooled depending on the model.
type Model interface {
	Run(ctx context.Context, text string) (Output, error)
	Dimensions() int
	Close() error
}

// OutputKind identifies the shape of a model's raw output.
type OutputKind int

const (
	// OutputFlat is an already-pooled vector of length dims.
	OutputFlat OutputKind = iota
	// OutputTokenMatrix is one vector per token, shape [tokens][dims].
	OutputTokenMatrix
)

// String returns the config name of the kind.
func (k OutputKind) String() string {
	if k == OutputTokenMatrix {
		return "token_matrix"
	}
	return "flat"
}

// ParseOutputKind maps a config value to an OutputKind. Unknown values default to token_matrix,
// which is what sentence-transformer ONNX exports produce.
func ParseOutputKind(s string) OutputKind {
	if s == "flat" {
		return OutputFlat
	}
	return OutputTokenMatrix
}

// Output is the raw result of a single model run. Exactly one of Flat or Tokens is meaningful,
// selected by Kind.
type Output struct {
	Kind   OutputKind
	Flat   []float32
	Tokens [][]float32
}

// FlatVector wraps an already-pooled vector.
func FlatVector(v []float32) Output {
	return Output{Kind: OutputFlat, Flat: v}
}

// TokenMatrix wraps a per-token matrix.
func TokenMatrix(m [][]float32) Output {
	return Output{Kind: OutputTokenMatrix, Tokens: m}
}

// Empty reports whether the output carries no values at all.
func (o Output) Empty() bool {
	if o.Kind == OutputTokenMatrix {
		return len(o.Tokens) == 0
	}
	return len(o.Flat) == 0
}
