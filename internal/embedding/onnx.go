//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXModel runs a sentence-embedding model with ONNX Runtime. It requires CGO and the
// onnxruntime shared library.
type ONNXModel struct {
	session    *ort.AdvancedSession
	outputKind OutputKind
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXModel loads the model described by cfg. The ONNX environment is initialized on first use.
func NewONNXModel(cfg ONNXConfig) (*ONNXModel, error) {
	cfg.applyDefaults()
	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	maxTokens := cfg.MaxTokens
	inputIDs, attentionMask, tokenTypeIDs := cfg.Tokenizer.Tokenize("", maxTokens)

	inputIDsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMaskTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), attentionMask)
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tokenTypeIDsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), tokenTypeIDs)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	outputShape := ort.NewShape(1, int64(cfg.Dimensions))
	if cfg.OutputKind == OutputTokenMatrix {
		outputShape = ort.NewShape(1, int64(maxTokens), int64(cfg.Dimensions))
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	inputs := []ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor}
	outputs := []ort.ArbitraryTensor{outputTensor}
	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{cfg.OutputName},
		inputs,
		outputs,
		nil,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXModel{
		session:             session,
		outputKind:          cfg.OutputKind,
		dimensions:          cfg.Dimensions,
		maxTokens:           maxTokens,
		tokenizer:           cfg.Tokenizer,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

// Run tokenizes text and runs inference. Token output is trimmed to attended positions so
// padding does not contribute to pooling.
func (m *ONNXModel) Run(ctx context.Context, text string) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Output{}, fmt.Errorf("ONNX session closed")
	}

	inputIDs, attentionMask, tokenTypeIDs := m.tokenizer.Tokenize(text, m.maxTokens)

	copy(m.inputIDsTensor.GetData(), inputIDs)
	copy(m.attentionMaskTensor.GetData(), attentionMask)
	copy(m.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := m.session.Run(); err != nil {
		return Output{}, fmt.Errorf("inference failed: %w", err)
	}

	outputData := m.outputTensor.GetData()
	if m.outputKind == OutputFlat {
		vec := make([]float32, m.dimensions)
		copy(vec, outputData[:m.dimensions])
		return FlatVector(vec), nil
	}
	tokens := make([][]float32, 0, ActiveTokens(attentionMask))
	for pos, mask := range attentionMask {
		if mask == 0 {
			continue
		}
		row := make([]float32, m.dimensions)
		copy(row, outputData[pos*m.dimensions:(pos+1)*m.dimensions])
		tokens = append(tokens, row)
	}
	return TokenMatrix(tokens), nil
}

// Dimensions returns the embedding dimension.
func (m *ONNXModel) Dimensions() int {
	return m.dimensions
}

// Close destroys the session and tensors.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.session != nil {
		err = m.session.Destroy()
		m.session = nil
	}
	if m.inputIDsTensor != nil {
		_ = m.inputIDsTensor.Destroy()
		m.inputIDsTensor = nil
	}
	if m.attentionMaskTensor != nil {
		_ = m.attentionMaskTensor.Destroy()
		m.attentionMaskTensor = nil
	}
	if m.tokenTypeIDsTensor != nil {
		_ = m.tokenTypeIDsTensor.Destroy()
		m.tokenTypeIDsTensor = nil
	}
	if m.outputTensor != nil {
		_ = m.outputTensor.Destroy()
		m.outputTensor = nil
	}
	return err
}
