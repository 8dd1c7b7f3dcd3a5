// Package vocab holds the closed business vocabulary the question compiler
// recognizes. The vocabulary is data: a YAML document embedded in the binary,
// or supplied from a file, parsed once and never mutated afterwards.
package vocab

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var builtin []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid vocabulary")

// Known enumerations. Entries in a vocabulary must use these names.
var (
	Departments      = []string{"sales", "finance", "devrel", "hr", "events", "compliance"}
	DateRangeKinds   = []string{"q1", "q2", "q3", "q4", "last_month", "this_month", "this_year"}
	AggregationKinds = []string{"sum", "avg", "count", "growth"}
	ComparisonKinds  = []string{"top", "bottom"}
)

// Vocabulary is the parsed keyword tables.
type Vocabulary struct {
	Departments   []Rule       `yaml:"departments" json:"departments"`
	DateRanges    []Rule       `yaml:"date_ranges" json:"date_ranges"`
	Aggregations  []Rule       `yaml:"aggregations" json:"aggregations"`
	Metrics       []MetricRule `yaml:"metrics" json:"metrics"`
	Comparisons   []Rule       `yaml:"comparisons" json:"comparisons"`
	LimitPatterns []string     `yaml:"limit_patterns" json:"limit_patterns"`
	DefaultLimit  int          `yaml:"default_limit" json:"default_limit"`
}

// Rule maps a tag (a department name or a kind) to its trigger phrases.
// Departments use Name, every other table uses Kind.
type Rule struct {
	Name     string   `yaml:"name,omitempty" json:"name,omitempty"`
	Kind     string   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Tag returns Name for department rules and Kind otherwise.
func (r Rule) Tag() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Kind
}

// MetricRule maps one keyword to the metric names it stands for.
type MetricRule struct {
	Keyword string   `yaml:"keyword" json:"keyword"`
	Metrics []string `yaml:"metrics" json:"metrics"`
}

var (
	defaultOnce sync.Once
	defaultVoc  *Vocabulary
	defaultErr  error
)

// Default returns the embedded vocabulary. It is parsed on first use and
// shared afterwards; callers must not modify it.
func Default() (*Vocabulary, error) {
	defaultOnce.Do(func() {
		defaultVoc, defaultErr = Parse(builtin)
	})
	return defaultVoc, defaultErr
}

// Load reads and validates a vocabulary file. An empty path returns the
// embedded vocabulary.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML vocabulary, lowercases every keyword and validates it.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	v.normalize()
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (v *Vocabulary) normalize() {
	lowerAll := func(rules []Rule) {
		for i := range rules {
			rules[i].Name = strings.ToLower(strings.TrimSpace(rules[i].Name))
			rules[i].Kind = strings.ToLower(strings.TrimSpace(rules[i].Kind))
			for j, kw := range rules[i].Keywords {
				rules[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
			}
		}
	}
	lowerAll(v.Departments)
	lowerAll(v.DateRanges)
	lowerAll(v.Aggregations)
	lowerAll(v.Comparisons)
	for i := range v.Metrics {
		v.Metrics[i].Keyword = strings.ToLower(strings.TrimSpace(v.Metrics[i].Keyword))
	}
}

// Validate checks every table against the known enumerations.
func (v *Vocabulary) Validate() error {
	if err := validateRules("departments", v.Departments, Departments); err != nil {
		return err
	}
	if err := validateRules("date_ranges", v.DateRanges, DateRangeKinds); err != nil {
		return err
	}
	if err := validateRules("aggregations", v.Aggregations, AggregationKinds); err != nil {
		return err
	}
	if err := validateRules("comparisons", v.Comparisons, ComparisonKinds); err != nil {
		return err
	}
	for i, m := range v.Metrics {
		if m.Keyword == "" {
			return fmt.Errorf("%w: metrics[%d]: empty keyword", ErrInvalid, i)
		}
		if len(m.Metrics) == 0 {
			return fmt.Errorf("%w: metrics[%d] %q: no metric names", ErrInvalid, i, m.Keyword)
		}
	}
	for i, p := range v.LimitPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("%w: limit_patterns[%d]: %v", ErrInvalid, i, err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("%w: limit_patterns[%d]: no capture group", ErrInvalid, i)
		}
	}
	if v.DefaultLimit < 0 {
		return fmt.Errorf("%w: default_limit must not be negative", ErrInvalid)
	}
	return nil
}

func validateRules(table string, rules []Rule, known []string) error {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		tag := r.Tag()
		if !slices.Contains(known, tag) {
			return fmt.Errorf("%w: %s[%d]: unknown %q (want one of %s)",
				ErrInvalid, table, i, tag, strings.Join(known, ", "))
		}
		if seen[tag] {
			return fmt.Errorf("%w: %s[%d]: duplicate %q", ErrInvalid, table, i, tag)
		}
		seen[tag] = true
		if len(r.Keywords) == 0 {
			return fmt.Errorf("%w: %s[%d] %q: no keywords", ErrInvalid, table, i, tag)
		}
		for _, kw := range r.Keywords {
			if kw == "" {
				return fmt.Errorf("%w: %s[%d] %q: empty keyword", ErrInvalid, table, i, tag)
			}
		}
	}
	return nil
}

// Keywords returns every distinct trigger phrase in the vocabulary, in table
// order. It feeds "did you mean" suggestions.
func (v *Vocabulary) Keywords() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(kw string) {
		if !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}
	for _, rules := range [][]Rule{v.Departments, v.DateRanges, v.Aggregations, v.Comparisons} {
		for _, r := range rules {
			for _, kw := range r.Keywords {
				add(kw)
			}
		}
	}
	for _, m := range v.Metrics {
		add(m.Keyword)
	}
	return out
}
