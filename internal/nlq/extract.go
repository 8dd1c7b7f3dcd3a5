package nlq

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Sub-extractors read only the question text and the explicit overrides, so
// they can run in any order.

func (c *Compiler) extract(question string, req Request, dept Department) *extraction {
	x := &extraction{}
	var note string
	var notes []string

	x.department, note = c.extractDepartment(question, dept)
	x.notes = appendNote(x.notes, note)

	x.dateRange, notes = c.extractDateRange(question, req.DateRange)
	x.notes = append(x.notes, notes...)

	x.aggregation, note = c.extractAggregation(question)
	x.notes = appendNote(x.notes, note)

	x.metrics, notes = c.extractMetrics(question)
	x.notes = append(x.notes, notes...)

	x.comparison, note = c.extractComparison(question)
	x.notes = appendNote(x.notes, note)

	x.limit, note = c.extractLimit(question)
	x.notes = appendNote(x.notes, note)

	return x
}

func appendNote(notes []string, note string) []string {
	if note == "" {
		return notes
	}
	return append(notes, note)
}

// extractDepartment prefers the explicit override, then the first department
// in enumeration order with a matching synonym.
func (c *Compiler) extractDepartment(question string, explicit Department) (Department, string) {
	if explicit != "" {
		return explicit, fmt.Sprintf("department: explicit %q", explicit)
	}
	for _, r := range c.rules.departments {
		if kw, ok := matchKeyword(question, r.keywords); ok {
			return r.department, fmt.Sprintf("department: keyword %q -> %s", kw, r.department)
		}
	}
	return "", ""
}

// extractDateRange parses an explicit range through the rule table first. An
// override that matches nothing falls back to the question text.
func (c *Compiler) extractDateRange(question, explicit string) (dateRange, []string) {
	var notes []string
	if explicit = strings.ToLower(strings.TrimSpace(explicit)); explicit != "" {
		if dr, hit, ok := c.matchDateTag(explicit); ok {
			return dr, append(notes, fmt.Sprintf("date_range: explicit %q -> %s", hit, dr.kind))
		}
		if dr, hit, ok := c.matchDate(explicit); ok {
			return dr, append(notes, fmt.Sprintf("date_range: explicit %q -> %s", hit, dr.kind))
		}
		notes = append(notes, fmt.Sprintf("date_range: explicit %q not recognized, using question", explicit))
	}
	if dr, hit, ok := c.matchDate(question); ok {
		return dr, append(notes, fmt.Sprintf("date_range: %q -> %s", hit, dr.kind))
	}
	return dateRange{kind: DateNone}, notes
}

// matchDateTag accepts an override spelled as the kind itself, e.g. "q4" or
// "last_month".
func (c *Compiler) matchDateTag(text string) (dateRange, string, bool) {
	build, ok := fixedDateBuilders[DateKind(text)]
	if !ok {
		return dateRange{}, "", false
	}
	return build(c.dialect, c.col("m", c.contract.MetricDate)), text, true
}

func (c *Compiler) matchDate(text string) (dateRange, string, bool) {
	col := c.col("m", c.contract.MetricDate)
	for _, r := range c.rules.dates {
		hit, groups, ok := r.match(text)
		if !ok {
			continue
		}
		if dr, ok := r.build(c.dialect, col, groups); ok {
			return dr, hit, true
		}
	}
	return dateRange{}, "", false
}

func (c *Compiler) extractAggregation(question string) (aggregation, string) {
	for _, r := range c.rules.aggregations {
		if kw, ok := matchKeyword(question, r.keywords); ok {
			return aggregation{kind: r.kind, sqlFunction: r.sqlFunction},
				fmt.Sprintf("aggregation: keyword %q -> %s", kw, r.kind)
		}
	}
	return aggregation{kind: AggregationNone}, ""
}

// extractMetrics collects the metric names of every matching keyword.
// Duplicates are kept; the IN list tolerates them.
func (c *Compiler) extractMetrics(question string) ([]string, []string) {
	var metrics, notes []string
	for _, r := range c.rules.metrics {
		if strings.Contains(question, r.keyword) {
			metrics = append(metrics, r.metrics...)
			notes = append(notes, fmt.Sprintf("metrics: keyword %q -> %s", r.keyword, strings.Join(r.metrics, ", ")))
		}
	}
	return metrics, notes
}

func (c *Compiler) extractComparison(question string) (comparison, string) {
	for _, r := range c.rules.comparisons {
		if kw, ok := matchKeyword(question, r.keywords); ok {
			return comparison{kind: r.kind, direction: r.direction},
				fmt.Sprintf("comparison: keyword %q -> %s %s", kw, r.kind, r.direction)
		}
	}
	return comparison{kind: ComparisonNone, direction: SortDesc}, ""
}

// extractLimit takes the first numeric limit pattern that matches. Without
// one, a ranking question gets the default limit.
func (c *Compiler) extractLimit(question string) (int, string) {
	for _, re := range c.rules.limitPatterns {
		m := re.FindStringSubmatch(question)
		if m == nil {
			continue
		}
		n, ok := c.validLimit(m[1])
		if !ok {
			return 0, fmt.Sprintf("limit: discarded %q (want an integer in 1..%d)", m[1], c.maxLimit)
		}
		return n, fmt.Sprintf("limit: %q -> %d", m[0], n)
	}
	if cmp, _ := c.extractComparison(question); cmp.kind != ComparisonNone && c.rules.defaultLimit > 0 {
		return c.rules.defaultLimit, fmt.Sprintf("limit: default %d for %s", c.rules.defaultLimit, cmp.kind)
	}
	return 0, ""
}

var digitsOnly = regexp.MustCompile(`^[0-9]{1,9}$`)

// validLimit accepts only a plain decimal in 1..maxLimit.
func (c *Compiler) validLimit(s string) (int, bool) {
	if !digitsOnly.MatchString(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > c.maxLimit {
		return 0, false
	}
	return n, true
}
