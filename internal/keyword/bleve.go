package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/certiquest/internal/models"
)

// Indexed text fields. Title matches are boosted at query time.
var textFields = []string{"title", "provider", "domain", "description"}

const (
	defaultTitleBoost = 3.0
	defaultFuzziness  = 2
)

// BleveIndex implements CatalogIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

var _ CatalogIndex = (*BleveIndex)(nil)

func catalogMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase and tokenize without stemming, so "aws" matches "AWS" exactly.
	textFieldMapping.Analyzer = standard.Name
	for _, f := range textFields {
		docMapping.AddFieldMappingsAt(f, textFieldMapping)
	}
	docMapping.AddFieldMappingsAt("credibility", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("certification", docMapping)
	im.DefaultType = "certification"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path keeps
// the index in memory, which suits tests and catalogs rebuilt at startup.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := catalogMapping()
	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index adds or replaces a certification in the index.
func (b *BleveIndex) Index(ctx context.Context, cert *models.Certification) error {
	return b.index.Index(cert.ID, map[string]interface{}{
		"title":       cert.Title,
		"provider":    cert.Provider,
		"domain":      cert.Domain,
		"description": cert.Description,
		"credibility": cert.Credibility,
	})
}

// IndexAll indexes a batch of certifications in one Bleve batch.
func (b *BleveIndex) IndexAll(ctx context.Context, certs []*models.Certification) error {
	batch := b.index.NewBatch()
	for _, cert := range certs {
		if err := batch.Index(cert.ID, map[string]interface{}{
			"title":       cert.Title,
			"provider":    cert.Provider,
			"domain":      cert.Domain,
			"description": cert.Description,
			"credibility": cert.Credibility,
		}); err != nil {
			return fmt.Errorf("failed to batch certification %s: %w", cert.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search runs a disjunction of per-field queries, boosting title matches.
// With fuzzy matching each query term becomes a FuzzyQuery.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	titleBoost := defaultTitleBoost
	fuzzy := false
	fuzziness := defaultFuzziness
	if opts != nil {
		if opts.TitleBoost > 0 {
			titleBoost = opts.TitleBoost
		}
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}
	if limit <= 0 {
		limit = 10
	}

	fieldQueries := make([]blevequery.Query, 0, len(textFields))
	for _, field := range textFields {
		boost := 1.0
		if field == "title" {
			boost = titleBoost
		}
		fieldQueries = append(fieldQueries, buildFieldQuery(query, field, boost, fuzzy, fuzziness))
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(fieldQueries...))
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Hit, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Hit{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

func buildFieldQuery(query, field string, boost float64, fuzzy bool, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(query)
	if !fuzzy || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Delete removes a certification from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed certifications.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// GetAllTerms returns the unique terms across all text fields.
func (b *BleveIndex) GetAllTerms() ([]string, error) {
	var terms []string
	seen := make(map[string]struct{})
	for _, field := range textFields {
		dict, err := b.index.FieldDict(field)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s dictionary: %w", field, err)
		}
		for {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			if _, ok := seen[entry.Term]; !ok {
				seen[entry.Term] = struct{}{}
				terms = append(terms, entry.Term)
			}
		}
		_ = dict.Close()
	}
	return terms, nil
}

// GetTermFrequency returns the number of certifications containing term.
func (b *BleveIndex) GetTermFrequency(term string) (int, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(term))
	req.Size = 0
	results, err := b.index.Search(req)
	if err != nil {
		return 0, fmt.Errorf("failed to search for term frequency: %w", err)
	}
	return int(results.Total), nil
}
