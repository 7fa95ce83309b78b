package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Facts maps template pattern sources to runtime lookups. A template
// referencing a fact not present here is a configuration error.
type Facts map[string]func() int

// parseRange parses a "start-end" range expression. An "auto" end
// resolves to count and is exclusive; a literal end is inclusive. The
// returned bounds are half-open.
func parseRange(expr string, count int) (int, int, error) {
	dash := strings.Index(expr, "-")
	if dash < 0 {
		return 0, 0, fmt.Errorf("range %q: missing '-'", expr)
	}
	start, err := strconv.Atoi(expr[:dash])
	if err != nil {
		return 0, 0, fmt.Errorf("range %q: bad start: %w", expr, err)
	}
	if start < 0 {
		return 0, 0, fmt.Errorf("range %q: negative start", expr)
	}

	endExpr := expr[dash+1:]
	if endExpr == "auto" {
		return start, count, nil
	}
	end, err := strconv.Atoi(endExpr)
	if err != nil {
		return 0, 0, fmt.Errorf("range %q: bad end: %w", expr, err)
	}
	if end < start {
		return 0, 0, fmt.Errorf("range %q: end before start", expr)
	}
	return start, end + 1, nil
}

// Expand resolves every template against facts and returns the full
// concrete metric list: static definitions first, then the expansions
// in catalog order. The index substitutes into the {index} placeholder
// of both the name and description templates.
func (c *Catalog) Expand(facts Facts) ([]Metric, error) {
	metrics := make([]Metric, 0, len(c.Static))
	metrics = append(metrics, c.Static...)

	for _, t := range c.Templates {
		fact, ok := facts[t.Source]
		if !ok {
			return nil, fmt.Errorf("template %q: unknown pattern source %q", t.Name, t.Source)
		}
		count := fact()
		start, end, err := parseRange(t.Range, count)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Name, err)
		}

		for i := start; i < end; i++ {
			idx := strconv.Itoa(i)
			m := t.Metric
			m.Name = strings.ReplaceAll(t.Name, "{index}", idx)
			m.Description = strings.ReplaceAll(t.Description, "{index}", idx)
			metrics = append(metrics, m)
		}
	}
	return metrics, nil
}
