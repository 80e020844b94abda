package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/certiquest/internal/catalog"
	"github.com/hyperjump/certiquest/internal/models"
)

// Sink receives parsed records. *catalog.Service implements it.
type Sink interface {
	AddCertification(ctx context.Context, in *models.CertificationInput) (*models.Certification, error)
	CreateUser(ctx context.Context, in *models.UserInput) (*models.User, error)
}

// Result counts what one import did. Duplicates are skipped, not errors.
type Result struct {
	Path                  string   `json:"path,omitempty"`
	CertificationsAdded   int      `json:"certifications_added"`
	CertificationsSkipped int      `json:"certifications_skipped"`
	UsersAdded            int      `json:"users_added"`
	UsersSkipped          int      `json:"users_skipped"`
	Errors                []string `json:"errors,omitempty"`
}

// Importer applies seed files to a Sink.
type Importer struct {
	sink   Sink
	logger *zap.Logger
}

// New creates an Importer. A nil logger is replaced with a no-op logger.
func New(sink Sink, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{sink: sink, logger: logger}
}

// ImportFile parses path and imports its records.
func (i *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	batch, err := ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	res, err := i.ImportBatch(ctx, batch)
	if res != nil {
		res.Path = path
	}
	if err != nil {
		return res, err
	}
	i.logger.Info("seed file imported",
		zap.String("path", path),
		zap.Int("certifications_added", res.CertificationsAdded),
		zap.Int("certifications_skipped", res.CertificationsSkipped),
		zap.Int("users_added", res.UsersAdded),
		zap.Int("users_skipped", res.UsersSkipped),
		zap.Int("errors", len(res.Errors)))
	return res, nil
}

// ImportBatch imports users first, then certifications. Invalid rows are
// recorded in Result.Errors and do not stop the import; storage failures do.
func (i *Importer) ImportBatch(ctx context.Context, b *Batch) (*Result, error) {
	res := &Result{}
	for n, in := range b.Users {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := i.sink.CreateUser(ctx, in)
		switch {
		case err == nil:
			res.UsersAdded++
		case errors.Is(err, catalog.ErrDuplicate):
			res.UsersSkipped++
		case errors.Is(err, catalog.ErrInvalidInput):
			res.Errors = append(res.Errors, fmt.Sprintf("user %d: %v", n+1, err))
		default:
			return res, fmt.Errorf("user %d: %w", n+1, err)
		}
	}
	for n, in := range b.Certifications {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := i.sink.AddCertification(ctx, in)
		switch {
		case err == nil:
			res.CertificationsAdded++
		case errors.Is(err, catalog.ErrDuplicate):
			res.CertificationsSkipped++
		case errors.Is(err, catalog.ErrInvalidInput):
			res.Errors = append(res.Errors, fmt.Sprintf("certification %d: %v", n+1, err))
		default:
			return res, fmt.Errorf("certification %d: %w", n+1, err)
		}
	}
	return res, nil
}

// ImportPath imports a single file, or every file under a directory whose
// extension is in exts (importer.Extensions when exts is empty).
func (i *Importer) ImportPath(ctx context.Context, path string, exts []string) ([]*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		res, err := i.ImportFile(ctx, path)
		if res == nil {
			return nil, err
		}
		return []*Result{res}, err
	}
	if len(exts) == 0 {
		exts = Extensions
	}
	var results []*Result
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasExtension(p, exts) {
			return nil
		}
		res, err := i.ImportFile(ctx, p)
		if res != nil {
			results = append(results, res)
		}
		return err
	})
	return results, err
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
