package models

// RecommendationResponse is the body of a successful recommendation request.
type RecommendationResponse struct {
	SuggestedCertifications []*Certification `json:"suggestedCertifications"`
}

// ScoredCertification pairs a certification with its similarity to the student's interests.
type ScoredCertification struct {
	Certification *Certification `json:"certification"`
	Score         float64        `json:"score"`
	Rank          int            `json:"rank"`
}

// ExplainedRecommendation is the scored variant of RecommendationResponse.
type ExplainedRecommendation struct {
	StudentID   string                 `json:"studentId"`
	QueryText   string                 `json:"queryText"`
	Results     []*ScoredCertification `json:"results"`
	Candidates  int                    `json:"candidates"`
	QueryTimeMS int64                  `json:"query_time_ms"`
}
