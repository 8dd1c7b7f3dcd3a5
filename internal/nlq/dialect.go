package nlq

import (
	"fmt"
	"strconv"
	"strings"
)

// PlaceholderStyle selects how bound parameters are written.
type PlaceholderStyle int

const (
	// PlaceholderQuestion writes every parameter as ?.
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar writes $1, $2, ... in bind order.
	PlaceholderDollar
)

// Dialect describes the SQL differences the compiler cares about: the
// placeholder convention and how to take date parts with the database's own
// functions.
type Dialect struct {
	Name        string
	Placeholder PlaceholderStyle

	// Quarter returns an expression yielding the quarter (1-4) of col.
	Quarter func(col string) string
	// Year returns an expression yielding the year of col.
	Year func(col string) string
	// CurrentYear yields the current year in the same form as Year.
	CurrentYear string
	// Month returns an expression bucketing col to its month.
	Month func(col string) string
	// CurrentMonth and PreviousMonth are buckets comparable with Month.
	CurrentMonth  string
	PreviousMonth string
}

var postgresDialect = &Dialect{
	Name:          "postgres",
	Placeholder:   PlaceholderDollar,
	Quarter:       func(col string) string { return "EXTRACT(QUARTER FROM " + col + ")" },
	Year:          func(col string) string { return "EXTRACT(YEAR FROM " + col + ")" },
	CurrentYear:   "EXTRACT(YEAR FROM CURRENT_DATE)",
	Month:         func(col string) string { return "DATE_TRUNC('month', " + col + ")" },
	CurrentMonth:  "DATE_TRUNC('month', CURRENT_DATE)",
	PreviousMonth: "DATE_TRUNC('month', CURRENT_DATE - INTERVAL '1 month')",
}

var duckdbDialect = &Dialect{
	Name:          "duckdb",
	Placeholder:   PlaceholderQuestion,
	Quarter:       postgresDialect.Quarter,
	Year:          postgresDialect.Year,
	CurrentYear:   postgresDialect.CurrentYear,
	Month:         postgresDialect.Month,
	CurrentMonth:  postgresDialect.CurrentMonth,
	PreviousMonth: postgresDialect.PreviousMonth,
}

var mysqlDialect = &Dialect{
	Name:          "mysql",
	Placeholder:   PlaceholderQuestion,
	Quarter:       func(col string) string { return "QUARTER(" + col + ")" },
	Year:          func(col string) string { return "YEAR(" + col + ")" },
	CurrentYear:   "YEAR(CURRENT_DATE)",
	Month:         func(col string) string { return "DATE_FORMAT(" + col + ", '%Y-%m')" },
	CurrentMonth:  "DATE_FORMAT(CURRENT_DATE, '%Y-%m')",
	PreviousMonth: "DATE_FORMAT(CURRENT_DATE - INTERVAL 1 MONTH, '%Y-%m')",
}

var sqliteDialect = &Dialect{
	Name:          "sqlite",
	Placeholder:   PlaceholderQuestion,
	Quarter:       func(col string) string { return "((CAST(strftime('%m', " + col + ") AS INTEGER) + 2) / 3)" },
	Year:          func(col string) string { return "CAST(strftime('%Y', " + col + ") AS INTEGER)" },
	CurrentYear:   "CAST(strftime('%Y', 'now') AS INTEGER)",
	Month:         func(col string) string { return "strftime('%Y-%m', " + col + ")" },
	CurrentMonth:  "strftime('%Y-%m', 'now')",
	PreviousMonth: "strftime('%Y-%m', 'now', 'start of month', '-1 month')",
}

// DefaultDialect is used when no dialect is configured.
var DefaultDialect = postgresDialect

var dialects = map[string]*Dialect{
	"postgres":   postgresDialect,
	"postgresql": postgresDialect,
	"duckdb":     duckdbDialect,
	"mysql":      mysqlDialect,
	"sqlite":     sqliteDialect,
}

// DialectNames lists the canonical dialect names.
func DialectNames() []string {
	return []string{"postgres", "mysql", "sqlite", "duckdb"}
}

// LookupDialect returns the dialect registered under name. An empty name
// selects DefaultDialect.
func LookupDialect(name string) (*Dialect, error) {
	if name == "" {
		return DefaultDialect, nil
	}
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownDialect, name, strings.Join(DialectNames(), ", "))
	}
	return d, nil
}

// rebind rewrites ? markers into the dialect's placeholder style. The
// assembler only ever emits ? for bound values; fixed fragments and
// identifiers never contain one.
func (d *Dialect) rebind(query string) string {
	if d.Placeholder != PlaceholderDollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// CountPlaceholders returns the number of bind markers in query for this
// dialect.
func (d *Dialect) CountPlaceholders(query string) int {
	if d.Placeholder != PlaceholderDollar {
		return strings.Count(query, "?")
	}
	n := 0
	for i := 0; i < len(query)-1; i++ {
		if query[i] == '$' && query[i+1] >= '0' && query[i+1] <= '9' {
			n++
		}
	}
	return n
}
