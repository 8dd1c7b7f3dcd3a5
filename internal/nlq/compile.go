// Package nlq compiles business questions into parameterized SQL.
//
// A Compiler recognizes a closed vocabulary (departments, date ranges,
// aggregations, metric names, rankings and limits) in a question and renders
// a single SELECT over a metrics fact table joined to a departments
// dimension. User-derived values are always bound parameters. Compile is a
// pure function of its inputs: it performs no I/O, keeps no state between
// calls and is safe for concurrent use.
package nlq

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sadopc/askql/internal/schema"
	"github.com/sadopc/askql/internal/suggest"
	"github.com/sadopc/askql/internal/vocab"
)

// DefaultMaxLimit bounds any extracted LIMIT.
const DefaultMaxLimit = 1000

// maxSuggestions caps the "did you mean" list in diagnostics.
const maxSuggestions = 5

// Options configures a Compiler.
type Options struct {
	// Dialect selects placeholder style and date functions. Empty means
	// postgres.
	Dialect string
	// Contract names the joined tables and columns. Empty fields take
	// their DefaultContract values.
	Contract Contract
	// BindLimit sends LIMIT as a bound parameter instead of a literal.
	BindLimit bool
	// MaxLimit bounds extracted limits; zero means DefaultMaxLimit.
	MaxLimit int
}

// Compiler turns questions into CompiledQuery values. It is immutable after
// New returns.
type Compiler struct {
	dialect   *Dialect
	contract  Contract
	bindLimit bool
	maxLimit  int
	rules     *ruleSet
	suggester *suggest.Suggester
}

// New builds a Compiler over v. A nil vocabulary selects the embedded one.
func New(v *vocab.Vocabulary, opts Options) (*Compiler, error) {
	if v == nil {
		var err error
		if v, err = vocab.Default(); err != nil {
			return nil, err
		}
	}
	d, err := LookupDialect(opts.Dialect)
	if err != nil {
		return nil, err
	}
	contract := opts.Contract.withDefaults()
	if err := contract.checkIdentifiers(); err != nil {
		return nil, err
	}
	rules, err := buildRules(v)
	if err != nil {
		return nil, err
	}
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	return &Compiler{
		dialect:   d,
		contract:  contract,
		bindLimit: opts.BindLimit,
		maxLimit:  maxLimit,
		rules:     rules,
		suggester: suggest.New(v.Keywords()),
	}, nil
}

// Dialect returns the dialect the compiler renders for.
func (c *Compiler) Dialect() *Dialect { return c.dialect }

// Contract returns the table and column names the compiler depends on.
func (c *Compiler) Contract() Contract { return c.contract }

// Compile extracts the intent of req.Question and renders it as SQL against
// cat. It fails only when a precondition is unmet: no catalog, a catalog
// that lacks the contract tables, a blank question or an unknown explicit
// department. A question that matches no vocabulary compiles to the
// unfiltered, most-recent-first query.
func (c *Compiler) Compile(req Request, cat *schema.Catalog) (*CompiledQuery, error) {
	if cat == nil {
		return nil, ErrSchemaRequired
	}
	if err := c.contract.Check(cat); err != nil {
		return nil, err
	}
	question := strings.ToLower(strings.TrimSpace(req.Question))
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	dept, err := ParseDepartment(req.Department)
	if err != nil {
		return nil, err
	}

	x := c.extract(question, req, dept)
	sql, args, patterns := c.assemble(x)

	q := &CompiledQuery{
		SQL:              sql,
		Parameters:       args,
		Explanation:      explain(x),
		MatchedPatterns:  patterns,
		DepartmentFilter: string(x.department),
		DateFilter:       string(x.dateRange.kind),
		AggregationType:  string(x.aggregation.kind),
		Limit:            x.limit,
		Dialect:          c.dialect.Name,
	}
	if q.Parameters == nil {
		q.Parameters = []any{}
	}
	if q.MatchedPatterns == nil {
		q.MatchedPatterns = []string{}
	}
	if req.Debug {
		q.Diagnostics = c.diagnostics(question, x, q)
	}
	return q, nil
}

func (c *Compiler) diagnostics(question string, x *extraction, q *CompiledQuery) []string {
	out := []string{"dialect: " + c.dialect.Name}
	out = append(out, x.notes...)
	out = append(out, fmt.Sprintf("parameters: %d bound, %d placeholders",
		len(q.Parameters), c.dialect.CountPlaceholders(q.SQL)))
	if unmatched(x) {
		if s := c.suggester.For(question, maxSuggestions); len(s) > 0 {
			out = append(out, "suggestions: "+strings.Join(s, ", "))
		}
	}
	return out
}

func unmatched(x *extraction) bool {
	return x.department == "" &&
		x.dateRange.kind == DateNone &&
		x.aggregation.kind == AggregationNone &&
		len(x.metrics) == 0 &&
		x.comparison.kind == ComparisonNone &&
		x.limit == 0
}

// ParseDepartment validates an explicit department. The empty string means
// no override.
func ParseDepartment(s string) (Department, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	if d := Department(s); slices.Contains(Departments, d) {
		return d, nil
	}
	names := make([]string, len(Departments))
	for i, d := range Departments {
		names[i] = string(d)
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownDepartment, s, strings.Join(names, ", "))
}
