package nlq

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sadopc/askql/internal/vocab"
)

// Rule tables are evaluated top to bottom; the first entry that matches
// wins, except for metric rules where every match contributes.

type departmentRule struct {
	department Department
	keywords   []string
}

// dateRule recognizes a date phrase and renders it as a predicate on col.
// build may reject a match (for example an impossible calendar date).
type dateRule struct {
	kind  DateKind
	match func(text string) (hit string, groups []string, ok bool)
	build func(d *Dialect, col string, groups []string) (dateRange, bool)
}

type aggregationRule struct {
	kind        AggregationKind
	sqlFunction string
	keywords    []string
}

type metricRule struct {
	keyword string
	metrics []string
}

type comparisonRule struct {
	kind      ComparisonKind
	direction SortDirection
	keywords  []string
}

// matchKeyword returns the first keyword contained in text.
func matchKeyword(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

func keywordMatcher(keywords []string) func(string) (string, []string, bool) {
	return func(text string) (string, []string, bool) {
		kw, ok := matchKeyword(text, keywords)
		return kw, nil, ok
	}
}

func regexpMatcher(re *regexp.Regexp) func(string) (string, []string, bool) {
	return func(text string) (string, []string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", nil, false
		}
		return m[0], m[1:], true
	}
}

// fixedDateBuilders render the vocabulary date kinds. They bind nothing:
// the database evaluates the current date itself.
var fixedDateBuilders = map[DateKind]func(d *Dialect, col string) dateRange{
	DateQ1:        quarterBuilder(DateQ1, 1),
	DateQ2:        quarterBuilder(DateQ2, 2),
	DateQ3:        quarterBuilder(DateQ3, 3),
	DateQ4:        quarterBuilder(DateQ4, 4),
	DateLastMonth: func(d *Dialect, col string) dateRange {
		return dateRange{
			kind:      DateLastMonth,
			label:     "for last month",
			predicate: d.Month(col) + " = " + d.PreviousMonth,
		}
	},
	DateThisMonth: func(d *Dialect, col string) dateRange {
		return dateRange{
			kind:      DateThisMonth,
			label:     "for this month",
			predicate: d.Month(col) + " = " + d.CurrentMonth,
		}
	},
	DateThisYear: func(d *Dialect, col string) dateRange {
		return dateRange{
			kind:      DateThisYear,
			label:     "for the current year",
			predicate: d.Year(col) + " = " + d.CurrentYear,
		}
	},
}

func quarterBuilder(kind DateKind, q int) func(d *Dialect, col string) dateRange {
	return func(d *Dialect, col string) dateRange {
		return dateRange{
			kind:      kind,
			label:     fmt.Sprintf("in Q%d of the current year", q),
			predicate: fmt.Sprintf("%s = %d AND %s = %s", d.Quarter(col), q, d.Year(col), d.CurrentYear),
		}
	}
}

var (
	isoRangePattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*(?:to|and|through|until|\.\.)\s*(\d{4}-\d{2}-\d{2})`)
	yearPattern     = regexp.MustCompile(`(?:^|\b(?:in|for|during)\s+)((?:19|20)\d{2})\b`)
)

const isoDate = "2006-01-02"

// customDateRules follow the vocabulary rules. Their bounds travel as bound
// parameters; the end bound is exclusive.
var customDateRules = []dateRule{
	{
		kind:  DateCustom,
		match: regexpMatcher(isoRangePattern),
		build: func(_ *Dialect, col string, groups []string) (dateRange, bool) {
			from, err := time.Parse(isoDate, groups[0])
			if err != nil {
				return dateRange{}, false
			}
			to, err := time.Parse(isoDate, groups[1])
			if err != nil || to.Before(from) {
				return dateRange{}, false
			}
			return dateRange{
				kind:      DateCustom,
				label:     fmt.Sprintf("between %s and %s", from.Format(isoDate), to.Format(isoDate)),
				predicate: col + " >= ? AND " + col + " < ?",
				params:    []any{from.Format(isoDate), to.AddDate(0, 0, 1).Format(isoDate)},
			}, true
		},
	},
	{
		kind:  DateCustom,
		match: regexpMatcher(yearPattern),
		build: func(_ *Dialect, col string, groups []string) (dateRange, bool) {
			start, err := time.Parse("2006", groups[0])
			if err != nil {
				return dateRange{}, false
			}
			return dateRange{
				kind:      DateCustom,
				label:     "in " + groups[0],
				predicate: col + " >= ? AND " + col + " < ?",
				params:    []any{start.Format(isoDate), start.AddDate(1, 0, 0).Format(isoDate)},
			}, true
		},
	},
}

var aggregationFunctions = map[AggregationKind]string{
	AggregationSum:    "SUM",
	AggregationAvg:    "AVG",
	AggregationCount:  "COUNT",
	AggregationGrowth: "AVG",
}

var comparisonDirections = map[ComparisonKind]SortDirection{
	ComparisonTop:    SortDesc,
	ComparisonBottom: SortAsc,
}

// ruleSet is the compiled form of a vocabulary.
type ruleSet struct {
	departments   []departmentRule
	dates         []dateRule
	aggregations  []aggregationRule
	metrics       []metricRule
	comparisons   []comparisonRule
	limitPatterns []*regexp.Regexp
	defaultLimit  int
}

func buildRules(v *vocab.Vocabulary) (*ruleSet, error) {
	rs := &ruleSet{defaultLimit: v.DefaultLimit}

	for _, r := range v.Departments {
		rs.departments = append(rs.departments, departmentRule{
			department: Department(r.Tag()),
			keywords:   r.Keywords,
		})
	}

	for _, r := range v.DateRanges {
		kind := DateKind(r.Tag())
		build, ok := fixedDateBuilders[kind]
		if !ok {
			return nil, fmt.Errorf("%w: no predicate for date range %q", vocab.ErrInvalid, kind)
		}
		rs.dates = append(rs.dates, dateRule{
			kind:  kind,
			match: keywordMatcher(r.Keywords),
			build: func(d *Dialect, col string, _ []string) (dateRange, bool) {
				return build(d, col), true
			},
		})
	}
	rs.dates = append(rs.dates, customDateRules...)

	for _, r := range v.Aggregations {
		kind := AggregationKind(r.Tag())
		fn, ok := aggregationFunctions[kind]
		if !ok {
			return nil, fmt.Errorf("%w: no SQL function for aggregation %q", vocab.ErrInvalid, kind)
		}
		rs.aggregations = append(rs.aggregations, aggregationRule{kind: kind, sqlFunction: fn, keywords: r.Keywords})
	}

	for _, m := range v.Metrics {
		rs.metrics = append(rs.metrics, metricRule{keyword: m.Keyword, metrics: m.Metrics})
	}

	for _, r := range v.Comparisons {
		kind := ComparisonKind(r.Tag())
		dir, ok := comparisonDirections[kind]
		if !ok {
			return nil, fmt.Errorf("%w: no sort direction for comparison %q", vocab.ErrInvalid, kind)
		}
		rs.comparisons = append(rs.comparisons, comparisonRule{kind: kind, direction: dir, keywords: r.Keywords})
	}

	for i, p := range v.LimitPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: limit_patterns[%d]: %v", vocab.ErrInvalid, i, err)
		}
		rs.limitPatterns = append(rs.limitPatterns, re)
	}
	return rs, nil
}
