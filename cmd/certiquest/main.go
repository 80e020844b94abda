// Package main is the CertiQuest CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/certiquest/internal/catalog"
	"github.com/hyperjump/certiquest/internal/cli"
	"github.com/hyperjump/certiquest/internal/config"
	"github.com/hyperjump/certiquest/internal/models"
	"github.com/hyperjump/certiquest/internal/server"
	"github.com/hyperjump/certiquest/internal/storage"
	"github.com/hyperjump/certiquest/internal/watcher"
	"github.com/hyperjump/certiquest/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/certiquest/config.yaml"
	defaultServerURL  = "http://localhost:5000"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present, and a missing default file falls back to
// built-in defaults. Returns the config and the path that was actually loaded
// ("" when running on defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "search":
		runSearch()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("certiquest version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`CertiQuest - certification discovery and recommendations

Usage:
  certiquest <command> [flags] [args]

Commands:
  server                  Start the HTTP API server
  recommend <studentId>   Show recommended certifications for a student
  search <query>          Keyword search over the certification catalog
  import <file-or-dir>    Import certifications and users from YAML, JSON, or XLSX
  status                  Show catalog counts and embedder state
  version                 Print the version
  help                    Show this help

Commands that read data accept -server (default ` + defaultServerURL + `);
pass -server "" to open the database directly when no server is running.
`)
}

// setupLogger loads config and builds the logger. debugFlag forces debug logging.
func setupLogger(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setupLogger(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recommendations answer 503 until this finishes; everything else serves right away.
	components.Lifecycle.Start(ctx)

	if cfg.Catalog.SeedPath != "" {
		if _, err := components.Importer.ImportPath(ctx, cfg.Catalog.SeedPath, cfg.Catalog.Extensions); err != nil {
			logger.Warn("seed import failed", zap.String("path", cfg.Catalog.SeedPath), zap.Error(err))
		}
	}
	if n, err := components.Catalog.RebuildIndex(ctx); err != nil {
		logger.Warn("keyword index rebuild failed", zap.Error(err))
	} else {
		logger.Info("keyword index ready", zap.Int("certifications", n))
	}

	var watchSvc server.WatchService
	if len(cfg.Catalog.WatchDirectories) > 0 {
		w := newImportWatcher(cfg, components, logger)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		w.SyncExistingFiles()
		watchSvc = w
	}

	srv := server.NewServer(
		components.Catalog,
		components.Recommender,
		components.Lifecycle,
		cfg,
		logger,
		watchSvc,
		resolvedConfigPath,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func newImportWatcher(cfg *config.Config, components *Components, logger *zap.Logger) *watcher.Watcher {
	imp := components.Importer
	return watcher.NewWatcher(
		cfg.Catalog.WatchDirectories,
		cfg.Catalog.Extensions,
		cfg.Catalog.RecursiveOrDefault(),
		func(path string) {
			if _, err := imp.ImportFile(context.Background(), path); err != nil {
				logger.Warn("watch import failed", zap.String("path", path), zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
	)
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front, since flag.Parse stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildSearchQuery joins positional args so multi-word queries work with or without quotes.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = compute directly)")
	scores := fs.Bool("scores", false, "include similarity scores")
	outputFormat := fs.String("output", "text", "output format: text or json")
	wait := fs.Duration("wait", 2*time.Minute, "how long to wait for the model to load (direct mode)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: certiquest recommend [flags] <studentId>")
		os.Exit(1)
	}
	studentID := fs.Arg(0)
	format := cli.ParseOutputFormat(*outputFormat)

	if *serverURL != "" {
		if err := recommendViaHTTP(os.Stdout, *serverURL, studentID, *scores, format); err != nil {
			fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, logger := setupLogger(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *wait)
	defer cancel()
	components.Lifecycle.Start(ctx)
	if err := components.Lifecycle.Wait(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Embedding model unavailable: %v\n", err)
		os.Exit(1)
	}

	if *scores {
		result, err := components.Recommender.Explain(ctx, studentID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteExplained(os.Stdout, result, format)
		return
	}
	certs, err := components.Recommender.Recommend(ctx, studentID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteRecommendations(os.Stdout, studentID, certs, format)
}

func recommendViaHTTP(w io.Writer, serverURL, studentID string, scores bool, format cli.OutputFormat) error {
	endpoint := serverURL + "/api/recommendations/" + url.PathEscape(studentID)
	if scores {
		endpoint += "?scores=true"
	}
	resp, err := http.Get(endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}
	if scores {
		var result models.ExplainedRecommendation
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return cli.WriteExplained(w, &result, format)
	}
	var result models.RecommendationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return cli.WriteRecommendations(w, studentID, result.SuggestedCertifications, format)
}

// serverError turns a non-2xx response into an error carrying the body's message.
func serverError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Message != "" {
		if body.Error != "" {
			return fmt.Errorf("server returned %d: %s: %s", resp.StatusCode, body.Message, body.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Message)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = search the local index directly)")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: certiquest search [flags] <query>")
		os.Exit(1)
	}
	format := cli.ParseOutputFormat(*outputFormat)

	var result *catalog.SearchResult
	if *serverURL != "" {
		res, err := searchViaHTTP(*serverURL, query, *limit, *fuzzy)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		result = res
	} else {
		cfg, _, logger := setupLogger(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		ctx := context.Background()
		if components.KeywordIndex != nil && cfg.Storage.BleveIndexPath == "" {
			// A memory index starts empty.
			_, _ = components.Catalog.RebuildIndex(ctx)
		}
		result, err = components.Catalog.Search(ctx, query, *limit, *fuzzy)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := writeSearchResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL, query string, limit int, fuzzy bool) (*catalog.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprint(limit))
	if fuzzy {
		params.Set("fuzzy", "true")
	}
	resp, err := http.Get(serverURL + "/api/certifications/search?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var result catalog.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func writeSearchResult(w io.Writer, result *catalog.SearchResult, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintf(w, "\nFound %d certifications\n", result.Total)
	if result.Total == 0 && result.Suggestion != "" {
		fmt.Fprintf(w, "Did you mean: %s\n", result.Suggestion)
	}
	fmt.Fprintln(w)
	for i, cert := range result.Certifications {
		fmt.Fprintf(w, "%2d. %s (%s) [%s] %s\n", i+1, cert.Title, cert.Provider, cert.Domain, cli.FormatCost(cert.Cost))
	}
	return nil
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: certiquest import [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	format := cli.ParseOutputFormat(*outputFormat)

	cfg, _, logger := setupLogger(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	results, err := components.Importer.ImportPath(context.Background(), path, cfg.Catalog.Extensions)
	for _, res := range results {
		_ = cli.WriteImportResult(os.Stdout, res, format)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Printf("No importable files found in %s\n", path)
	}
}

// statusResponse is the shape of GET /api/status.
type statusResponse struct {
	Certifications int64  `json:"certifications"`
	Users          int64  `json:"users"`
	IndexedDocs    uint64 `json:"indexed_docs"`
	Embedder       *struct {
		State string `json:"state"`
		Error string `json:"error,omitempty"`
	} `json:"embedder,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, logger := setupLogger(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		stats, err := components.Catalog.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Certifications: stats.Certifications,
			Users:          stats.Users,
			IndexedDocs:    stats.IndexedDocs,
			Config: map[string]interface{}{
				"embedding_provider": cfg.Embedding.Provider,
				"database_path":      cfg.Storage.DatabasePath,
				"bleve_index_path":   cfg.Storage.BleveIndexPath,
			},
		}
		if diskBytes, err := storage.DiskUsageBytes(storagePaths(cfg)...); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	if cli.ParseOutputFormat(*outputFormat) == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	writeStatusText(os.Stdout, &status)
}

// storagePaths lists the on-disk files behind the store and keyword index. An
// empty index path means the index lives in memory.
func storagePaths(cfg *config.Config) []string {
	paths := storage.DatabaseFiles(cfg.Storage.DatabasePath)
	if cfg.Storage.BleveIndexPath != "" {
		paths = append(paths, cfg.Storage.BleveIndexPath)
	}
	return paths
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "certifications:     %d\n", status.Certifications)
	fmt.Fprintf(w, "users:              %d\n", status.Users)
	fmt.Fprintf(w, "indexed_docs:       %d   # certifications in the keyword index\n", status.IndexedDocs)
	if status.Embedder != nil {
		fmt.Fprintf(w, "embedder:           %s\n", status.Embedder.State)
		if status.Embedder.Error != "" {
			fmt.Fprintf(w, "embedder_error:     %s\n", status.Embedder.Error)
		}
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	if len(status.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, key := range []string{"embedding_provider", "embedding_dimensions", "top_k", "workers", "database_path", "bleve_index_path"} {
			if v, ok := status.Config[key]; ok && v != "" {
				fmt.Fprintf(w, "%-19s %v\n", key+":", v)
			}
		}
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}
