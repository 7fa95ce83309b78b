package procscan

import (
	"fmt"
	"regexp"
)

// Matcher matches process command names against a configured pattern.
// Matching is always case-insensitive regardless of how the pattern was
// written.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

// NewMatcher compiles pattern into a case-insensitive matcher. An invalid
// expression is a configuration error and is returned to the caller.
func NewMatcher(pattern string) (*Matcher, error) {
	if pattern == "" {
		return nil, fmt.Errorf("process pattern is empty")
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid process pattern %q: %w", pattern, err)
	}
	return &Matcher{pattern: pattern, re: re}, nil
}

// Match reports whether command matches the configured pattern.
func (m *Matcher) Match(command string) bool {
	return m.re.MatchString(command)
}

// Pattern returns the original pattern string as configured.
func (m *Matcher) Pattern() string {
	return m.pattern
}
