package vector

import "sort"

// Scored is a candidate's catalog position paired with its similarity to the query.
type Scored struct {
	Index int
	Score float64
}

// Rank scores every candidate against query and returns them ordered by
// descending similarity. Ties keep their input order. The list is truncated
// to k after sorting; k <= 0 returns every candidate.
func Rank(query []float32, candidates [][]float32, k int) []Scored {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{Index: i, Score: CosineSimilarity(query, c)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
