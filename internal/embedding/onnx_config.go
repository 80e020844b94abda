package embedding

// ONNXConfig describes an ONNX sentence-embedding model export.
type ONNXConfig struct {
	ModelPath         string
	SharedLibraryPath string
	// OutputName is the graph output to read ("last_hidden_state" for token output,
	// "sentence_embedding" or similar for pooled exports).
	OutputName string
	OutputKind OutputKind
	Dimensions int
	MaxTokens  int
	Tokenizer  Tokenizer
}

func (c *ONNXConfig) applyDefaults() {
	if c.Dimensions <= 0 {
		c.Dimensions = DefaultDimensions
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	if c.OutputName == "" {
		if c.OutputKind == OutputTokenMatrix {
			c.OutputName = "last_hidden_state"
		} else {
			c.OutputName = "sentence_embedding"
		}
	}
	if c.Tokenizer == nil {
		c.Tokenizer = &SimpleTokenizer{}
	}
}
