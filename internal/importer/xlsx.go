package importer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/certiquest/internal/models"
	"github.com/hyperjump/certiquest/pkg/utils"
)

// parseXLSX reads a workbook whose sheets are named "Certifications" and/or
// "Users" (case-insensitive). The first row of each sheet holds column headers.
// A workbook with a single unnamed sheet is read as certifications.
func parseXLSX(content []byte) (*Batch, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var b Batch
	for _, sheet := range sheets {
		kind := strings.ToLower(strings.TrimSpace(sheet))
		if kind != "certifications" && kind != "users" {
			if len(sheets) != 1 {
				continue
			}
			kind = "certifications"
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		records := toRecords(rows)
		for i, rec := range records {
			// Header is spreadsheet row 1, so data starts at row 2.
			line := i + 2
			switch kind {
			case "certifications":
				in, err := certificationFromRecord(rec)
				if err != nil {
					return nil, fmt.Errorf("sheet %q row %d: %w", sheet, line, err)
				}
				b.Certifications = append(b.Certifications, in)
			case "users":
				in, err := userFromRecord(rec)
				if err != nil {
					return nil, fmt.Errorf("sheet %q row %d: %w", sheet, line, err)
				}
				b.Users = append(b.Users, in)
			}
		}
	}
	return &b, nil
}

// record maps a normalized header to a cleaned cell value.
type record map[string]string

// normalizeHeader lowercases and strips spaces, underscores and dashes so
// "Faculty Verified", "faculty_verified" and "facultyVerified" all match.
func normalizeHeader(h string) string {
	h = strings.ToLower(h)
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

func toRecords(rows [][]string) []record {
	if len(rows) < 2 {
		return nil
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = normalizeHeader(h)
	}
	out := make([]record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(record, len(headers))
		empty := true
		for i, cell := range row {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			v := utils.CollapseSpace(cell)
			if v != "" {
				empty = false
			}
			rec[headers[i]] = v
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out
}

func certificationFromRecord(rec record) (*models.CertificationInput, error) {
	in := &models.CertificationInput{
		ID:          rec["id"],
		Title:       rec["title"],
		Provider:    rec["provider"],
		Link:        rec["link"],
		Domain:      rec["domain"],
		Deadline:    rec["deadline"],
		Description: rec["description"],
		Credibility: strings.ToLower(rec["credibility"]),
	}
	if v := rec["cost"]; v != "" {
		cost, err := parseCost(v)
		if err != nil {
			return nil, err
		}
		in.Cost = &cost
	}
	if v := rec["facultyverified"]; v != "" {
		in.FacultyVerified = parseBool(v)
	}
	if v := rec["rating"]; v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rating %q", v)
		}
		in.Rating = r
	}
	return in, nil
}

// parseCost accepts "Free", "$1,200" and plain numbers.
func parseCost(v string) (float64, error) {
	if strings.EqualFold(v, "free") {
		return 0, nil
	}
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
	cost, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cost %q", v)
	}
	return cost, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "x":
		return true
	}
	return false
}

func userFromRecord(rec record) (*models.UserInput, error) {
	in := &models.UserInput{
		ID:             rec["id"],
		Email:          rec["email"],
		FullName:       rec["fullname"],
		Role:           rec["role"],
		University:     rec["university"],
		Degree:         rec["degree"],
		Interests:      utils.SplitList(rec["interests"]),
		Department:     rec["department"],
		Specialization: rec["specialization"],
	}
	if in.FullName == "" {
		in.FullName = rec["name"]
	}
	for key, dst := range map[string]*int{
		"graduationyear":    &in.GraduationYear,
		"yearsofexperience": &in.YearsOfExperience,
	} {
		if v := rec[key]; v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q", key, v)
			}
			*dst = n
		}
	}
	return in, nil
}
