package registry

import (
	"fmt"
	"regexp"
	"strings"

	constants "procwatch/config"
	"procwatch/pkg/utils"
)

var (
	nonAlnumRe    = regexp.MustCompile(`[^a-z0-9]`)
	multiUnderRe  = regexp.MustCompile(`_+`)
	cpuCoreRe     = regexp.MustCompile(`^cpu_core_(\d+)`)
	cpuWordRe     = regexp.MustCompile(`(?i)\bcpu\b`)
	braceSuffixRe = regexp.MustCompile(`\{.*\}$`)
)

// SanitizeForMetrics converts an arbitrary string into a safe technical
// identifier using only [a-z0-9_]. The function is idempotent: applying
// it to its own output returns the same string.
func SanitizeForMetrics(input string) string {
	if input == "" {
		return "unknown"
	}
	result := strings.ToLower(input)
	result = nonAlnumRe.ReplaceAllString(result, "_")
	result = multiUnderRe.ReplaceAllString(result, "_")
	result = strings.Trim(result, "_")
	if result != "" && result[0] >= '0' && result[0] <= '9' {
		result = "metric_" + result
	}
	if result == "" {
		return "unknown"
	}
	return result
}

// FormatMetricName derives a human-readable display name from a raw
// metric key. CPU core metrics get a dedicated form selected by
// coreStyle ("short" yields "CPU 0", "long" yields "CPU Core 0"); all
// other names have underscores spaced out, the word "cpu" uppercased
// and remaining words capitalized.
func FormatMetricName(name, coreStyle string) string {
	if m := cpuCoreRe.FindStringSubmatch(name); m != nil {
		if coreStyle == constants.CORE_STYLE_LONG {
			return fmt.Sprintf("CPU Core %s", m[1])
		}
		return fmt.Sprintf("CPU %s", m[1])
	}

	display := strings.ReplaceAll(name, "_", " ")
	display = cpuWordRe.ReplaceAllString(display, "CPU")

	words := strings.Fields(display)
	for i, word := range words {
		if strings.ToUpper(word) != "CPU" {
			words[i] = capitalize(word)
		}
	}
	return strings.Join(words, " ")
}

// ServiceDisplayName extracts a display name from a fully qualified
// service name. The part after the configured marker is used when
// present; otherwise the last dot-separated segment.
func ServiceDisplayName(fullName, marker, coreStyle string) string {
	base := fullName
	if marker != "" {
		if idx := strings.Index(fullName, marker); idx >= 0 {
			base = fullName[idx+len(marker):]
		} else if i := strings.LastIndex(fullName, "."); i >= 0 {
			base = fullName[i+1:]
		}
	} else if i := strings.LastIndex(fullName, "."); i >= 0 {
		base = fullName[i+1:]
	}
	return FormatMetricName(base, coreStyle)
}

// SimpleMetricName reduces a fully qualified metric name to the short
// form used for instrument registration: the last '/'-separated segment,
// falling back to the last '.'-separated segment, with any trailing
// "{...}" suffix stripped.
func SimpleMetricName(fullName string) string {
	if fullName == "" {
		return "unknown"
	}
	simple := fullName
	if idx := strings.LastIndex(fullName, "/"); idx >= 0 {
		simple = fullName[idx+1:]
	} else if idx := strings.LastIndex(fullName, "."); idx >= 0 {
		simple = fullName[idx+1:]
	}
	simple = braceSuffixRe.ReplaceAllString(simple, "")
	return strings.TrimSpace(simple)
}

// FormatMetricValue applies display formatting to a raw value. Ratios
// at or below 1.0 are scaled to percentages when the metric is marked
// as one; counters round to whole numbers; everything else rounds to
// the configured number of decimals.
func FormatMetricValue(value float64, isPercentage, isCounter bool, decimals int) float64 {
	if isPercentage && value <= 1.0 {
		value *= 100.0
	}
	if isCounter {
		return utils.Round(value, 0)
	}
	return utils.Round(value, decimals)
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}
