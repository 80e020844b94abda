// Package importer loads certification and user seed files (YAML, JSON, XLSX)
// into the catalog.
package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/certiquest/internal/models"
)

// Batch is the content of one seed file.
type Batch struct {
	Certifications []*models.CertificationInput `yaml:"certifications" json:"certifications"`
	Users          []*models.UserInput          `yaml:"users" json:"users"`
}

// Extensions lists the file types ParseFile understands.
var Extensions = []string{".yaml", ".yml", ".json", ".xlsx"}

// ParseFile reads path and decodes it according to its extension.
func ParseFile(path string) (*Batch, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ParseBytes decodes content for the given extension (with leading dot).
func ParseBytes(content []byte, ext string) (*Batch, error) {
	switch ext {
	case ".yaml", ".yml":
		return parseYAML(content)
	case ".json":
		return parseJSON(content)
	case ".xlsx":
		return parseXLSX(content)
	default:
		return nil, fmt.Errorf("unsupported seed format %q", ext)
	}
}

func parseYAML(content []byte) (*Batch, error) {
	var b Batch
	if err := yaml.Unmarshal(content, &b); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return &b, nil
}

// parseJSON accepts either {"certifications": [...], "users": [...]} or a bare
// array of certifications.
func parseJSON(content []byte) (*Batch, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var certs []*models.CertificationInput
		if err := json.Unmarshal(trimmed, &certs); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
		return &Batch{Certifications: certs}, nil
	}
	var b Batch
	if err := json.Unmarshal(trimmed, &b); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return &b, nil
}
