// Package catalog implements the certification catalog and user profile operations:
// adding certifications, reviews, faculty verification, bookmarks and keyword search.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/certiquest/internal/keyword"
	"github.com/hyperjump/certiquest/internal/models"
	"github.com/hyperjump/certiquest/internal/storage"
)

// Service coordinates the stores and the keyword index.
type Service struct {
	certs     storage.CertificationStore
	users     storage.UserStore
	index     keyword.CatalogIndex
	suggester *keyword.Suggester
	logger    *zap.Logger
	now       func() time.Time

	// mu serializes read-modify-write updates (reviews, bookmarks, verification).
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithIndex enables keyword search. When the index also exposes its term
// dictionary, searches with no hits return a spelling suggestion.
func WithIndex(idx keyword.CatalogIndex) Option {
	return func(s *Service) {
		s.index = idx
		if dict, ok := idx.(keyword.TermDictionary); ok {
			s.suggester = keyword.NewSuggester(dict)
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a catalog service.
func NewService(certs storage.CertificationStore, users storage.UserStore, opts ...Option) *Service {
	s := &Service{
		certs:  certs,
		users:  users,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddCertification validates and stores a new certification.
func (s *Service) AddCertification(ctx context.Context, in *models.CertificationInput) (*models.Certification, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidInput)
	}
	if missing := in.MissingFields(); len(missing) > 0 {
		s.logger.Debug("certification rejected", zap.Strings("missing", missing))
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	credibility := in.Credibility
	if credibility == "" {
		credibility = models.CredibilityNew
	}
	if !validCredibility(credibility) {
		return nil, fmt.Errorf("%w: unknown credibility %q", ErrInvalidInput, credibility)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.certs.FindCertificationByTitleProvider(ctx, in.Title, in.Provider)
	if err == nil {
		s.logger.Warn("certification already exists",
			zap.String("id", existing.ID), zap.String("title", in.Title), zap.String("provider", in.Provider))
		return nil, fmt.Errorf("certification %q by %q: %w", in.Title, in.Provider, ErrDuplicate)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for duplicate: %w", err)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	cert := &models.Certification{
		ID:              id,
		Title:           in.Title,
		Provider:        in.Provider,
		Link:            in.Link,
		Domain:          in.Domain,
		Cost:            *in.Cost,
		Deadline:        in.Deadline,
		Description:     in.Description,
		Credibility:     credibility,
		FacultyVerified: in.FacultyVerified,
		Rating:          in.Rating,
		Reviews:         in.Reviews,
		ReviewList:      in.ReviewList,
	}
	for i := range cert.ReviewList {
		if cert.ReviewList[i].ID == "" {
			cert.ReviewList[i].ID = uuid.NewString()
		}
	}
	if len(cert.ReviewList) > 0 {
		recomputeRating(cert)
	}

	if err := s.certs.CreateCertification(ctx, cert); err != nil {
		return nil, fmt.Errorf("failed to store certification: %w", err)
	}
	s.indexCertification(ctx, cert)
	s.logger.Info("certification added",
		zap.String("id", cert.ID), zap.String("title", cert.Title), zap.String("provider", cert.Provider))
	return cert, nil
}

func validCredibility(c string) bool {
	switch c {
	case models.CredibilityVerified, models.CredibilityTrusted, models.CredibilityNew:
		return true
	}
	return false
}

// recomputeRating sets Reviews to the review count and Rating to their mean.
func recomputeRating(cert *models.Certification) {
	cert.Reviews = len(cert.ReviewList)
	if cert.Reviews == 0 {
		cert.Rating = 0
		return
	}
	var sum float64
	for _, r := range cert.ReviewList {
		sum += r.Rating
	}
	cert.Rating = sum / float64(cert.Reviews)
}

// ListCertifications returns the catalog in creation order.
func (s *Service) ListCertifications(ctx context.Context) ([]*models.Certification, error) {
	certs, err := s.certs.ListCertifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list certifications: %w", err)
	}
	if certs == nil {
		certs = []*models.Certification{}
	}
	return certs, nil
}

// GetCertification returns a certification by ID.
func (s *Service) GetCertification(ctx context.Context, id string) (*models.Certification, error) {
	return s.certs.GetCertification(ctx, id)
}

// AddReview appends a review and recomputes the certification's rating as the mean.
func (s *Service) AddReview(ctx context.Context, in *models.ReviewInput) (*models.Certification, error) {
	if in == nil || in.CertificationID == "" || in.User == "" || in.Rating == 0 {
		return nil, fmt.Errorf("%w: certificationId, user and rating are required", ErrInvalidInput)
	}
	if in.Rating < 0 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 0 and 5", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cert, err := s.certs.GetCertification(ctx, in.CertificationID)
	if err != nil {
		return nil, err
	}
	cert.ReviewList = append(cert.ReviewList, models.Review{
		ID:        uuid.NewString(),
		User:      in.User,
		UserName:  in.UserName,
		Rating:    in.Rating,
		Text:      in.Text,
		CreatedAt: s.now(),
	})
	recomputeRating(cert)
	if err := s.certs.UpdateCertification(ctx, cert); err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}
	s.logger.Debug("review added", zap.String("certification", cert.ID), zap.Float64("rating", cert.Rating), zap.Int("reviews", cert.Reviews))
	return cert, nil
}

// Verify marks a certification as faculty-verified. Only users with the Faculty role may verify.
func (s *Service) Verify(ctx context.Context, in *models.VerifyInput) (*models.Certification, error) {
	if in == nil || in.CertificationID == "" || in.FacultyID == "" {
		return nil, fmt.Errorf("%w: certificationId and facultyId are required", ErrInvalidInput)
	}

	faculty, err := s.users.GetUser(ctx, in.FacultyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", in.FacultyID, ErrForbidden)
		}
		return nil, err
	}
	if faculty.Role != models.RoleFaculty {
		return nil, fmt.Errorf("user %s has role %s: %w", faculty.ID, faculty.Role, ErrForbidden)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cert, err := s.certs.GetCertification(ctx, in.CertificationID)
	if err != nil {
		return nil, err
	}
	cert.FacultyVerified = true
	if err := s.certs.UpdateCertification(ctx, cert); err != nil {
		return nil, fmt.Errorf("failed to verify certification: %w", err)
	}
	s.logger.Info("certification verified", zap.String("id", cert.ID), zap.String("faculty", faculty.ID))
	return cert, nil
}

// DeleteCertification removes a certification from the store and the index.
func (s *Service) DeleteCertification(ctx context.Context, id string) error {
	if err := s.certs.DeleteCertification(ctx, id); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to remove certification from index", zap.String("id", id), zap.Error(err))
		}
		s.invalidateSuggestions()
	}
	return nil
}

func (s *Service) indexCertification(ctx context.Context, cert *models.Certification) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, cert); err != nil {
		s.logger.Warn("failed to index certification", zap.String("id", cert.ID), zap.Error(err))
		return
	}
	s.invalidateSuggestions()
}

func (s *Service) invalidateSuggestions() {
	if s.suggester != nil {
		s.suggester.Invalidate()
	}
}
