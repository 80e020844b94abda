//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errONNXUnavailable = errors.New("ONNX model requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXModel stub type when built without CGO (see onnx.go for real implementation).
type ONNXModel struct{}

// NewONNXModel returns an error when built without CGO (ONNX not available).
func NewONNXModel(_ ONNXConfig) (*ONNXModel, error) {
	return nil, errONNXUnavailable
}

// Run always fails without CGO.
func (m *ONNXModel) Run(context.Context, string) (Output, error) {
	return Output{}, errONNXUnavailable
}

// Dimensions returns 0 without CGO.
func (m *ONNXModel) Dimensions() int { return 0 }

// Close is a no-op without CGO.
func (m *ONNXModel) Close() error { return nil }
