// Package cli formats CertiQuest command output.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/certiquest/internal/importer"
	"github.com/hyperjump/certiquest/internal/models"
	"github.com/hyperjump/certiquest/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const rule = "─────────────────────────────────────────────────────────"

// ParseOutputFormat maps a flag value to a format; anything but "json" is text.
func ParseOutputFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRecommendations writes a plain recommendation list to w.
func WriteRecommendations(w io.Writer, studentID string, certs []*models.Certification, format OutputFormat) error {
	if format == OutputJSON {
		if certs == nil {
			certs = []*models.Certification{}
		}
		return writeJSON(w, models.RecommendationResponse{SuggestedCertifications: certs})
	}
	fmt.Fprintf(w, "\n%d recommendations for %s\n\n", len(certs), studentID)
	for i, cert := range certs {
		writeOneCertification(w, i+1, cert, nil)
	}
	return nil
}

// WriteExplained writes a scored recommendation list to w.
func WriteExplained(w io.Writer, result *models.ExplainedRecommendation, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	query := result.QueryText
	if query == "" {
		query = "(no interests)"
	}
	fmt.Fprintf(w, "\n%d of %d certifications for %s in %dms\nInterests: %s\n\n",
		len(result.Results), result.Candidates, result.StudentID, result.QueryTimeMS, query)
	for _, r := range result.Results {
		score := r.Score
		writeOneCertification(w, r.Rank, r.Certification, &score)
	}
	return nil
}

func writeOneCertification(w io.Writer, rank int, cert *models.Certification, score *float64) {
	fmt.Fprintln(w, rule)
	if score != nil {
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", rank, *score)
	} else {
		fmt.Fprintf(w, "Rank: %d\n", rank)
	}
	fmt.Fprintf(w, "%s (%s)\n", cert.Title, cert.Provider)
	fmt.Fprintf(w, "ID: %s | Domain: %s | Cost: %s\n", cert.ID, cert.Domain, FormatCost(cert.Cost))
	if cert.Description != "" {
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(cert.Description, 200))
	}
	fmt.Fprintln(w)
}

// FormatCost renders a cost in dollars, with zero shown as Free.
func FormatCost(cost float64) string {
	if cost == 0 {
		return "Free"
	}
	if cost == float64(int64(cost)) {
		return fmt.Sprintf("$%d", int64(cost))
	}
	return fmt.Sprintf("$%.2f", cost)
}

// WriteImportResult writes the outcome of importing one file.
func WriteImportResult(w io.Writer, result *importer.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	if result.Path != "" {
		fmt.Fprintf(w, "Imported %s\n", result.Path)
	}
	fmt.Fprintf(w, "  certifications: %d added, %d skipped\n", result.CertificationsAdded, result.CertificationsSkipped)
	fmt.Fprintf(w, "  users:          %d added, %d skipped\n", result.UsersAdded, result.UsersSkipped)
	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "  %d rows rejected:\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "    - %s\n", e)
		}
	}
	return nil
}

// PrintRecommendations prints recommendations to stdout in text format.
func PrintRecommendations(studentID string, certs []*models.Certification) {
	_ = WriteRecommendations(os.Stdout, studentID, certs, OutputText)
}
