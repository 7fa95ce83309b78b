// Package registry persists metric and service metadata in a local
// SQLite database: stable identifiers, display names, formatting hints
// and the schema migration log. All lookups are upserts keyed on a
// natural key; identifiers are opaque UUIDs minted on first sight.
package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("registry: not found")

// OtelType selects the OpenTelemetry instrument kind used to export a
// metric.
type OtelType string

const (
	OtelGauge         OtelType = "Gauge"
	OtelCounter       OtelType = "Counter"
	OtelUpDownCounter OtelType = "UpDownCounter"
)

// ParseOtelType validates a stored or configured instrument kind.
func ParseOtelType(s string) (OtelType, error) {
	switch OtelType(s) {
	case OtelGauge, OtelCounter, OtelUpDownCounter:
		return OtelType(s), nil
	case "":
		return OtelGauge, nil
	}
	return "", fmt.Errorf("unknown otel type %q", s)
}

// FormatType describes how a metric value is rendered for display.
type FormatType string

const (
	FormatNumber     FormatType = "number"
	FormatPercentage FormatType = "percentage"
	FormatCounter    FormatType = "counter"
)

// ParseFormatType validates a stored or configured format type.
func ParseFormatType(s string) (FormatType, error) {
	switch FormatType(s) {
	case FormatNumber, FormatPercentage, FormatCounter:
		return FormatType(s), nil
	case "":
		return FormatNumber, nil
	}
	return "", fmt.Errorf("unknown format type %q", s)
}

// Identity is the result of an upsert. When the database is unavailable
// the registry still returns a usable identity, but marks it Degraded:
// the ID is ephemeral and will not survive a restart. Callers must not
// persist or cross-reference degraded IDs.
type Identity struct {
	ID          string
	DisplayName string
	Degraded    bool
}

// MetricSpec is the caller-supplied definition of a metric being
// registered. Description is used for instrument registration only and
// is not persisted.
type MetricSpec struct {
	Name         string
	Description  string
	Unit         string
	Format       FormatType
	Decimals     int
	IsPercentage bool
	IsCounter    bool
	Otel         OtelType
}

// MetricRecord is a persisted metric row.
type MetricRecord struct {
	ID           string
	Name         string
	DisplayName  string
	Unit         string
	Format       FormatType
	Decimals     int
	IsPercentage bool
	IsCounter    bool
	Otel         OtelType
}

// ServiceRecord is a persisted service row.
type ServiceRecord struct {
	ID          string
	FullName    string
	DisplayName string
	Version     string
	Description string
	FirstSeen   string
	LastSeen    string
}

// FormatRule drives display-name derivation. Rules are seeded at schema
// creation and read-only afterwards; they apply in descending priority.
type FormatRule struct {
	Pattern     string
	Replacement string
	RuleType    string
	Priority    int
}

// defaultFormatRules mirror the seeded rows and serve as the fallback
// when the database cannot be read.
func defaultFormatRules() []FormatRule {
	return []FormatRule{
		{Pattern: "cpu", Replacement: "CPU", RuleType: "word_replacement", Priority: 100},
		{Pattern: "_", Replacement: " ", RuleType: "character_replacement", Priority: 50},
		{Pattern: "word_start", Replacement: "capitalize", RuleType: "word_formatting", Priority: 10},
	}
}
