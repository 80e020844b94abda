package keyword

import (
	"sort"
	"strings"
	"sync"
)

// Suggester proposes a corrected query when a catalog search finds nothing,
// using terms already present in the index.
type Suggester struct {
	dictionary  TermDictionary
	maxDistance int

	mu    sync.RWMutex
	terms []string
	set   map[string]struct{}
	valid bool
}

// SuggesterOption configures a Suggester.
type SuggesterOption func(*Suggester)

// WithMaxDistance sets the maximum edit distance for a suggestion.
func WithMaxDistance(d int) SuggesterOption {
	return func(s *Suggester) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// NewSuggester creates a Suggester over dict.
func NewSuggester(dict TermDictionary, opts ...SuggesterOption) *Suggester {
	s := &Suggester{dictionary: dict, maxDistance: 2}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate drops the cached vocabulary; the next call reloads it.
// Call after the catalog changes.
func (s *Suggester) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

func (s *Suggester) load() error {
	s.mu.RLock()
	valid := s.valid
	s.mu.RUnlock()
	if valid {
		return nil
	}
	terms, err := s.dictionary.GetAllTerms()
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	s.mu.Lock()
	s.terms, s.set, s.valid = terms, set, true
	s.mu.Unlock()
	return nil
}

// DidYouMean returns the query with each unknown term replaced by its closest
// indexed term, or "" when nothing would change.
func (s *Suggester) DidYouMean(query string) string {
	if err := s.load(); err != nil {
		return ""
	}
	terms := tokenizeQuery(query)
	changed := false
	for i, term := range terms {
		s.mu.RLock()
		_, known := s.set[term]
		s.mu.RUnlock()
		if known {
			continue
		}
		if best := s.closest(term); best != "" {
			terms[i] = best
			changed = true
		}
	}
	if !changed {
		return ""
	}
	return strings.Join(terms, " ")
}

type candidate struct {
	term     string
	distance int
	freq     int
}

// closest picks the nearest term by edit distance, then by document frequency.
func (s *Suggester) closest(term string) string {
	s.mu.RLock()
	vocab := s.terms
	s.mu.RUnlock()

	var found []candidate
	n := len([]rune(term))
	for _, t := range vocab {
		diff := len([]rune(t)) - n
		if diff < 0 {
			diff = -diff
		}
		if diff > s.maxDistance {
			continue
		}
		d := LevenshteinDistance(term, t)
		if d == 0 || d > s.maxDistance {
			continue
		}
		freq, err := s.dictionary.GetTermFrequency(t)
		if err != nil || freq == 0 {
			continue
		}
		found = append(found, candidate{term: t, distance: d, freq: freq})
	}
	if len(found) == 0 {
		return ""
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].distance != found[j].distance {
			return found[i].distance < found[j].distance
		}
		if found[i].freq != found[j].freq {
			return found[i].freq > found[j].freq
		}
		return found[i].term < found[j].term
	})
	return found[0].term
}
