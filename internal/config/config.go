// Package config provides configuration loading and structs for the CertiQuest server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Recommend RecommendConfig `yaml:"recommend"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds paths for the database and the keyword index.
// An empty bleve_index_path keeps the index in memory.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// Embedding providers.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// EmbeddingConfig selects and tunes the embedding model.
type EmbeddingConfig struct {
	Provider          string `yaml:"provider"`
	ModelPath         string `yaml:"model_path"`
	VocabPath         string `yaml:"vocab_path"`
	SharedLibraryPath string `yaml:"shared_library_path"`
	Dimensions        int    `yaml:"dimensions"`
	MaxTokens         int    `yaml:"max_tokens"`
	OutputName        string `yaml:"output_name"`
	OutputKind        string `yaml:"output_kind"`
	CacheSize         int    `yaml:"cache_size"`
	OpenAIModel       string `yaml:"openai_model"`
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
}

// RecommendConfig holds recommendation settings.
type RecommendConfig struct {
	TopK    int           `yaml:"top_k"`
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

// CatalogConfig holds seed import and watch directory settings.
type CatalogConfig struct {
	SeedPath         string   `yaml:"seed_path"`
	WatchDirectories []string `yaml:"watch_directories"`
	Extensions       []string `yaml:"extensions"`
	Recursive        *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (c *CatalogConfig) RecursiveOrDefault() bool {
	if c.Recursive != nil {
		return *c.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, and expands paths relative to the config file.
// A .env file next to the config (or in the working directory) is loaded first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	loadDotEnv(configDir)
	finalize(&cfg, configDir)
	return &cfg, nil
}

// Default returns a config built from defaults and the environment only.
// Relative paths resolve against the working directory.
func Default() *Config {
	var cfg Config
	loadDotEnv(".")
	finalize(&cfg, ".")
	return &cfg
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

func finalize(cfg *Config, configDir string) {
	ApplyDefaults(cfg)
	ApplyEnv(cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	cfg.Catalog.SeedPath = expandPath(cfg.Catalog.SeedPath, configDir)
	for i := range cfg.Catalog.WatchDirectories {
		cfg.Catalog.WatchDirectories[i] = expandPath(cfg.Catalog.WatchDirectories[i], configDir)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func loadDotEnv(configDir string) {
	// godotenv never overrides variables already set in the process environment.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	if configDir != "." {
		_ = godotenv.Load()
	}
}

// ApplyEnv overrides cfg with values from the environment.
func ApplyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Debug = getEnvBool("CERTIQUEST_DEBUG", cfg.Debug)
	cfg.Storage.DatabasePath = getEnv("CERTIQUEST_DB_PATH", cfg.Storage.DatabasePath)
	cfg.Embedding.Provider = getEnv("CERTIQUEST_EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.APIKey = getEnv("OPENAI_API_KEY", cfg.Embedding.APIKey)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		if abs, err := filepath.Abs(filepath.Join(configDir, path)); err == nil {
			return abs
		}
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
