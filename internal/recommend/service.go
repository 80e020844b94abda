// Package recommend ranks the certification catalog against a student's interests
// by embedding similarity.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/certiquest/internal/embedding"
	"github.com/hyperjump/certiquest/internal/models"
	"github.com/hyperjump/certiquest/internal/storage"
	"github.com/hyperjump/certiquest/internal/vector"
)

// DefaultTopK is the number of certifications returned when Config.TopK is unset.
const DefaultTopK = 10

var (
	// ErrNotFound is returned when the student ID is unknown.
	ErrNotFound = errors.New("student not found")
	// ErrServiceUnavailable is returned while the embedding model is still loading.
	// It wraps embedding.ErrNotReady.
	ErrServiceUnavailable = errors.New("recommendation service unavailable")
)

// UserLookup resolves a student profile.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// CatalogSource supplies the full certification catalog in a stable order.
type CatalogSource interface {
	ListCertifications(ctx context.Context) ([]*models.Certification, error)
}

// Embedder turns text into vectors and reports model readiness.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Ready() error
}

// Config tunes the service.
type Config struct {
	TopK    int
	Workers int
	// Timeout bounds one Recommend call; zero means no limit beyond the caller's context.
	Timeout time.Duration
}

// Service produces personalized certification recommendations.
type Service struct {
	users    UserLookup
	catalog  CatalogSource
	embedder Embedder
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a recommendation service. A nil logger is replaced with a no-op logger.
func NewService(users UserLookup, catalog CatalogSource, embedder Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, catalog: catalog, embedder: embedder, cfg: cfg, logger: logger}
}

// Recommend returns up to TopK certifications ordered by similarity to the student's interests.
// Ties keep catalog order. Any embedding failure fails the whole call.
func (s *Service) Recommend(ctx context.Context, studentID string) ([]*models.Certification, error) {
	r, err := s.rank(ctx, studentID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Certification, len(r.scored))
	for i, sc := range r.scored {
		out[i] = r.certs[sc.Index]
	}
	return out, nil
}

// Explain runs the same ranking as Recommend and reports each result's score.
func (s *Service) Explain(ctx context.Context, studentID string) (*models.ExplainedRecommendation, error) {
	start := time.Now()
	r, err := s.rank(ctx, studentID)
	if err != nil {
		return nil, err
	}
	results := make([]*models.ScoredCertification, len(r.scored))
	for i, sc := range r.scored {
		results[i] = &models.ScoredCertification{
			Certification: r.certs[sc.Index],
			Score:         sc.Score,
			Rank:          i + 1,
		}
	}
	return &models.ExplainedRecommendation{
		StudentID:   studentID,
		QueryText:   r.query,
		Results:     results,
		Candidates:  len(r.certs),
		QueryTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

type ranking struct {
	query  string
	certs  []*models.Certification
	scored []vector.Scored
}

func (s *Service) rank(ctx context.Context, studentID string) (*ranking, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	// Check readiness before touching any data: a half-initialized model never ranks.
	if err := s.embedder.Ready(); err != nil {
		return nil, embedderError(err)
	}

	user, err := s.users.GetUser(ctx, studentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, studentID)
		}
		return nil, fmt.Errorf("failed to load student: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, studentID)
	}

	query := user.InterestText()
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed interests: %w", embedderError(err))
	}

	certs, err := s.catalog.ListCertifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	vecs, err := s.embedCatalog(ctx, certs)
	if err != nil {
		return nil, err
	}

	scored := vector.Rank(queryVec, vecs, s.cfg.TopK)
	s.logger.Debug("recommendations ranked",
		zap.String("student", studentID),
		zap.Int("interests", len(user.Interests)),
		zap.Int("candidates", len(certs)),
		zap.Int("returned", len(scored)))
	return &ranking{query: query, certs: certs, scored: scored}, nil
}

// embedCatalog embeds every certification with at most Workers in flight.
// Vectors are stored by catalog index so ranking sees catalog order.
func (s *Service) embedCatalog(ctx context.Context, certs []*models.Certification) ([][]float32, error) {
	vecs := make([][]float32, len(certs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, cert := range certs {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, cert.EmbeddingText())
			if err != nil {
				return fmt.Errorf("failed to embed certification %s: %w", cert.ID, embedderError(err))
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}

func embedderError(err error) error {
	if errors.Is(err, embedding.ErrNotReady) && !errors.Is(err, ErrServiceUnavailable) {
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	return err
}
