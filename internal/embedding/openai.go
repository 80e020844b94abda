package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the hosted embedding model.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// OpenAIModel produces pooled embeddings through the OpenAI embeddings API. The request asks
// for Dimensions outputs so vectors line up with the local model's width.
type OpenAIModel struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIModel creates a client for the embeddings endpoint. It does not make a request.
func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := openai.SmallEmbedding3
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &OpenAIModel{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: dims,
	}, nil
}

// Run embeds text with a single API call.
func (m *OpenAIModel) Run(ctx context.Context, text string) (Output, error) {
	resp, err := m.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      m.model,
		Dimensions: m.dimensions,
	})
	if err != nil {
		return Output{}, fmt.Errorf("creating embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return FlatVector(nil), nil
	}
	return FlatVector(resp.Data[0].Embedding), nil
}

// Probe verifies the endpoint is reachable and returns vectors of the configured width.
func (m *OpenAIModel) Probe(ctx context.Context) error {
	out, err := m.Run(ctx, "probe")
	if err != nil {
		return err
	}
	if len(out.Flat) != m.dimensions {
		return fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(out.Flat), m.dimensions)
	}
	return nil
}

// Dimensions returns the requested embedding dimension.
func (m *OpenAIModel) Dimensions() int {
	return m.dimensions
}

// Close is a no-op; the HTTP client holds no resources.
func (m *OpenAIModel) Close() error {
	return nil
}
