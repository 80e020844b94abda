package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/certiquest/internal/keyword"
	"github.com/hyperjump/certiquest/internal/models"
)

// SearchResult is the outcome of a catalog keyword search.
type SearchResult struct {
	Certifications []*models.Certification `json:"certifications"`
	Total          int                     `json:"total"`
	// Suggestion is a corrected query offered when nothing matched.
	Suggestion string `json:"suggestion,omitempty"`
}

// Search finds certifications matching query. Without a keyword index it falls
// back to a case-insensitive substring scan of the catalog.
func (s *Service) Search(ctx context.Context, query string, limit int, fuzzy bool) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}
	if s.index == nil {
		return s.scan(ctx, query, limit)
	}

	hits, err := s.index.Search(ctx, query, limit, &keyword.SearchOptions{FuzzyEnabled: fuzzy})
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	result := &SearchResult{Certifications: make([]*models.Certification, 0, len(hits))}
	for _, hit := range hits {
		cert, err := s.certs.GetCertification(ctx, hit.ID)
		if err != nil {
			// Stale index entry; the store is authoritative.
			s.logger.Debug("search hit missing from store", zap.String("id", hit.ID), zap.Error(err))
			continue
		}
		result.Certifications = append(result.Certifications, cert)
	}
	result.Total = len(result.Certifications)
	if result.Total == 0 && s.suggester != nil {
		result.Suggestion = s.suggester.DidYouMean(query)
	}
	return result, nil
}

func (s *Service) scan(ctx context.Context, query string, limit int) (*SearchResult, error) {
	certs, err := s.ListCertifications(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	result := &SearchResult{Certifications: []*models.Certification{}}
	for _, c := range certs {
		hay := strings.ToLower(models.JoinNonEmpty(c.Title, c.Provider, c.Description, c.Domain))
		if strings.Contains(hay, needle) {
			result.Certifications = append(result.Certifications, c)
			if len(result.Certifications) == limit {
				break
			}
		}
	}
	result.Total = len(result.Certifications)
	return result, nil
}

// RebuildIndex re-indexes the whole catalog from the store.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	certs, err := s.certs.ListCertifications(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list certifications: %w", err)
	}
	for _, c := range certs {
		if err := s.index.Index(ctx, c); err != nil {
			return 0, fmt.Errorf("failed to index certification %s: %w", c.ID, err)
		}
	}
	s.invalidateSuggestions()
	s.logger.Info("catalog index rebuilt", zap.Int("certifications", len(certs)))
	return len(certs), nil
}

// Stats summarizes catalog size.
type Stats struct {
	Certifications int64  `json:"certifications"`
	Users          int64  `json:"users"`
	IndexedDocs    uint64 `json:"indexed_docs"`
}

// Stats returns record counts for status reporting.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	certs, err := s.certs.CountCertifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count certifications: %w", err)
	}
	users, err := s.users.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	st := &Stats{Certifications: certs, Users: users}
	if s.index != nil {
		if n, err := s.index.DocCount(); err == nil {
			st.IndexedDocs = n
		}
	}
	return st, nil
}
