// Package catalog loads the declarative metric catalog, expands
// templated definitions against runtime facts and reconciles the
// result with the metadata registry.
package catalog

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"procwatch/internal/registry"
)

// Metric is a concrete catalog definition ready for registration.
type Metric struct {
	Name         string
	Description  string
	Unit         string
	Decimals     int
	IsPercentage bool
	IsCounter    bool
	Otel         registry.OtelType
}

// Template is a definition that expands to several concrete metrics.
// Kind is currently always "indexed": Source names a runtime fact that
// resolves to a count, and Range selects which indexes to emit.
type Template struct {
	Metric
	Kind   string
	Source string
	Range  string
}

// Catalog is the parsed metric catalog, split into static definitions
// and templates.
type Catalog struct {
	Static    []Metric
	Templates []Template
}

// entry is the raw TOML record shape. Static and templated definitions
// share it; the pattern fields are only set on templates.
type entry struct {
	Name          string `toml:"name"`
	Description   string `toml:"description"`
	Unit          string `toml:"unit"`
	Decimals      int    `toml:"decimals"`
	IsPercentage  bool   `toml:"is_percentage"`
	IsCounter     bool   `toml:"is_counter"`
	OtelType      string `toml:"otel_type"`
	PatternType   string `toml:"pattern_type"`
	PatternSource string `toml:"pattern_source"`
	PatternRange  string `toml:"pattern_range"`
}

type catalogFile struct {
	Metrics []entry `toml:"metrics"`
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes catalog TOML and splits entries into static metrics and
// templates. An entry with any pattern field set must be a complete,
// well-formed template.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	c := &Catalog{}
	for i, e := range file.Metrics {
		if e.Name == "" {
			return nil, fmt.Errorf("catalog entry %d has no name", i)
		}
		ot, err := registry.ParseOtelType(e.OtelType)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", e.Name, err)
		}
		m := Metric{
			Name:         e.Name,
			Description:  e.Description,
			Unit:         e.Unit,
			Decimals:     e.Decimals,
			IsPercentage: e.IsPercentage,
			IsCounter:    e.IsCounter,
			Otel:         ot,
		}

		if e.PatternType == "" && e.PatternSource == "" && e.PatternRange == "" {
			c.Static = append(c.Static, m)
			continue
		}
		if e.PatternType != "indexed" {
			return nil, fmt.Errorf("catalog entry %q: unsupported pattern_type %q", e.Name, e.PatternType)
		}
		if e.PatternSource == "" || e.PatternRange == "" {
			return nil, fmt.Errorf("catalog entry %q: indexed template needs pattern_source and pattern_range", e.Name)
		}
		c.Templates = append(c.Templates, Template{
			Metric: m,
			Kind:   e.PatternType,
			Source: e.PatternSource,
			Range:  e.PatternRange,
		})
	}
	return c, nil
}

// FormatType derives the display format from the definition flags.
func (m Metric) FormatType() registry.FormatType {
	switch {
	case m.IsPercentage:
		return registry.FormatPercentage
	case m.IsCounter:
		return registry.FormatCounter
	}
	return registry.FormatNumber
}

// Spec converts a concrete definition into a registry metric spec.
func (m Metric) Spec() registry.MetricSpec {
	return registry.MetricSpec{
		Name:         m.Name,
		Description:  m.Description,
		Unit:         m.Unit,
		Format:       m.FormatType(),
		Decimals:     m.Decimals,
		IsPercentage: m.IsPercentage,
		IsCounter:    m.IsCounter,
		Otel:         m.Otel,
	}
}
