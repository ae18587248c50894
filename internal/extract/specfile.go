package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SpecFile describes a field spec configuration file. Specs are defined once
// and reused across many documents; selectors never live in code.
type SpecFile struct {
	// BaseURL is the default base for resolving url fields. A CLI flag may
	// override it per run.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	Fields []FieldSpec `json:"fields" yaml:"fields"`
}

// LoadSpecFile loads and validates a JSON or YAML spec file. The format is
// chosen by extension: .yaml/.yml parse as YAML, everything else as JSON.
func LoadSpecFile(path string) (*SpecFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec file: %w", err)
	}

	var sf SpecFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &sf); err != nil {
			return nil, fmt.Errorf("parse spec yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &sf); err != nil {
			return nil, fmt.Errorf("parse spec json: %w", err)
		}
	}

	if len(sf.Fields) == 0 {
		return nil, fmt.Errorf("spec file %s has no fields", path)
	}
	if err := ValidateSpecs(sf.Fields); err != nil {
		return nil, err
	}
	return &sf, nil
}

// ValidateSpecs checks a spec list for configuration mistakes so extraction
// itself can stay single-pass and panic-free.
//
// Rules:
//   - field names are non-empty and unique
//   - every locator has a selector; match patterns compile
//   - kind is one of text, url, pair (or empty for text)
//   - url fields declare at least one attribute
//   - max is never negative
//   - scope references an earlier field in the list, never itself or a
//     later one
func ValidateSpecs(specs []FieldSpec) error {
	seen := make(map[string]bool, len(specs))

	for i, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			return fmt.Errorf("spec[%d]: missing field name", i)
		}
		if seen[spec.Name] {
			return fmt.Errorf("field %q: duplicate name", spec.Name)
		}

		locators := append([]Locator{spec.Locator}, spec.Fallbacks...)
		for j, loc := range locators {
			if strings.TrimSpace(loc.Selector) == "" {
				return fmt.Errorf("field %q: locator %d has an empty selector", spec.Name, j)
			}
			if loc.Match != "" {
				if _, err := regexp.Compile(loc.Match); err != nil {
					return fmt.Errorf("field %q: locator %d match: %w", spec.Name, j, err)
				}
			}
		}

		switch spec.Kind {
		case "", KindText, KindPair:
		case KindURL:
			if len(spec.Attrs) == 0 {
				return fmt.Errorf("field %q: url kind needs at least one attribute", spec.Name)
			}
		default:
			return fmt.Errorf("field %q: unknown kind %q", spec.Name, spec.Kind)
		}

		if spec.Max < 0 {
			return fmt.Errorf("field %q: negative max", spec.Name)
		}

		if spec.Scope != "" {
			if spec.Scope == spec.Name {
				return fmt.Errorf("field %q: scope references itself", spec.Name)
			}
			if !seen[spec.Scope] {
				return fmt.Errorf("field %q: scope %q is not an earlier field", spec.Name, spec.Scope)
			}
		}

		seen[spec.Name] = true
	}
	return nil
}
