// Package keyword provides full-text search over the certification catalog.
package keyword

import (
	"context"

	"github.com/hyperjump/certiquest/internal/models"
)

// SearchOptions tunes a catalog search. Nil means defaults.
type SearchOptions struct {
	// TitleBoost multiplies matches in the title field. Default 3.
	TitleBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance (1 or 2). Default 2 when fuzzy.
	Fuzziness int
}

// Hit is a single search result.
type Hit struct {
	ID    string
	Score float64
}

// CatalogIndex indexes certifications for keyword search.
type CatalogIndex interface {
	Index(ctx context.Context, cert *models.Certification) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// TermDictionary exposes the indexed vocabulary to the Suggester.
type TermDictionary interface {
	GetAllTerms() ([]string, error)
	GetTermFrequency(term string) (int, error)
}
