// Package models defines core data structures for certifications, users, and recommendations.
package models

import (
	"strings"
	"time"
)

// Credibility levels a certification can carry.
const (
	CredibilityVerified = "verified"
	CredibilityTrusted  = "trusted"
	CredibilityNew      = "new"
)

// TextSeparator joins the parts of a certification or interest profile into embedding text.
const TextSeparator = ". "

// Certification is a catalog entry students can browse, bookmark, and review.
type Certification struct {
	ID              string    `json:"id" db:"id" yaml:"id,omitempty"`
	Title           string    `json:"title" db:"title" yaml:"title"`
	Provider        string    `json:"provider" db:"provider" yaml:"provider"`
	Link            string    `json:"link" db:"link" yaml:"link"`
	Domain          string    `json:"domain" db:"domain" yaml:"domain"`
	Cost            float64   `json:"cost" db:"cost" yaml:"cost"`
	Deadline        string    `json:"deadline" db:"deadline" yaml:"deadline"`
	Description     string    `json:"description" db:"description" yaml:"description"`
	Credibility     string    `json:"credibility" db:"credibility" yaml:"credibility,omitempty"`
	FacultyVerified bool      `json:"facultyVerified" db:"faculty_verified" yaml:"faculty_verified,omitempty"`
	Rating          float64   `json:"rating" db:"rating" yaml:"rating,omitempty"`
	Reviews         int       `json:"reviews" db:"reviews" yaml:"reviews,omitempty"`
	ReviewList      []Review  `json:"reviewList" db:"review_list" yaml:"review_list,omitempty"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at" yaml:"-"`
}

// Review is a single student review attached to a certification.
type Review struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	UserName  string    `json:"userName,omitempty"`
	Rating    float64   `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmbeddingText returns the text a certification is embedded from: title, description,
// and domain joined by TextSeparator, skipping empty fields.
func (c *Certification) EmbeddingText() string {
	return JoinNonEmpty(c.Title, c.Description, c.Domain)
}

// JoinNonEmpty joins the non-empty parts with TextSeparator.
func JoinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, TextSeparator)
}

// CertificationInput is the body of an add-certification request.
type CertificationInput struct {
	ID              string   `json:"id,omitempty" yaml:"id,omitempty"`
	Title           string   `json:"title" yaml:"title"`
	Provider        string   `json:"provider" yaml:"provider"`
	Link            string   `json:"link" yaml:"link"`
	Domain          string   `json:"domain" yaml:"domain"`
	Cost            *float64 `json:"cost" yaml:"cost"`
	Deadline        string   `json:"deadline" yaml:"deadline"`
	Description     string   `json:"description" yaml:"description"`
	Credibility     string   `json:"credibility,omitempty" yaml:"credibility,omitempty"`
	FacultyVerified bool     `json:"facultyVerified,omitempty" yaml:"faculty_verified,omitempty"`
	Rating          float64  `json:"rating,omitempty" yaml:"rating,omitempty"`
	Reviews         int      `json:"reviews,omitempty" yaml:"reviews,omitempty"`
	ReviewList      []Review `json:"reviewList,omitempty" yaml:"review_list,omitempty"`
}

// MissingFields returns the names of required fields that are empty.
func (in *CertificationInput) MissingFields() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("title", in.Title)
	check("provider", in.Provider)
	check("link", in.Link)
	check("domain", in.Domain)
	if in.Cost == nil {
		missing = append(missing, "cost")
	}
	check("deadline", in.Deadline)
	check("description", in.Description)
	return missing
}

// ReviewInput is the body of an add-review request.
type ReviewInput struct {
	CertificationID string  `json:"certificationId"`
	User            string  `json:"user"`
	UserName        string  `json:"userName,omitempty"`
	Rating          float64 `json:"rating"`
	Text            string  `json:"text"`
}

// VerifyInput is the body of a faculty verification request.
type VerifyInput struct {
	CertificationID string `json:"certificationId"`
	FacultyID       string `json:"facultyId"`
}
