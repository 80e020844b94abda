package config

import (
	"runtime"
	"time"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/db/certiquest.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "./data/indices/catalog.bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.OutputKind == "" {
		cfg.Embedding.OutputKind = "token_matrix"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OpenAIModel == "" {
		cfg.Embedding.OpenAIModel = "text-embedding-3-small"
	}
	if cfg.Recommend.TopK == 0 {
		cfg.Recommend.TopK = 10
	}
	if cfg.Recommend.Workers == 0 {
		cfg.Recommend.Workers = runtime.NumCPU()
	}
	if cfg.Recommend.Timeout == 0 {
		cfg.Recommend.Timeout = 30 * time.Second
	}
	if cfg.Catalog.Extensions == nil {
		cfg.Catalog.Extensions = []string{".yaml", ".yml", ".json", ".xlsx"}
	}
	if len(cfg.Catalog.WatchDirectories) > 0 && cfg.Catalog.Recursive == nil {
		t := true
		cfg.Catalog.Recursive = &t
	}
}
