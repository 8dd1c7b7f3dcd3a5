// Package render writes compiled queries and query results to the terminal
// or as machine-readable output.
package render

import (
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/askql/internal/theme"
)

// Highlighter colors SQL of one dialect with a theme's styles.
type Highlighter struct {
	lexer chroma.Lexer
}

// dialectLexers maps a dialect to its chroma lexer. DuckDB SQL is close
// enough to PostgreSQL for coloring.
var dialectLexers = map[string]string{
	"postgres": "PostgreSQL",
	"duckdb":   "PostgreSQL",
	"mysql":    "MySQL",
	"sqlite":   "SQL",
}

// NewHighlighter returns a Highlighter for dialect, using the generic SQL
// lexer for anything unknown.
func NewHighlighter(dialect string) *Highlighter {
	l := lexers.Get(dialectLexers[dialect])
	if l == nil {
		l = lexers.Get("SQL")
	}
	if l == nil {
		l = lexers.Fallback
	}
	return &Highlighter{lexer: chroma.Coalesce(l)}
}

// placeholder matches a whole bind marker token in any supported dialect.
var placeholder = regexp.MustCompile(`^(\?|\$[0-9]+)$`)

// tokenRules is checked in order and the first match wins. KeywordType sits
// inside the Keyword category so it comes before the keyword rule.
var tokenRules = []struct {
	match func(chroma.TokenType) bool
	style func(*theme.Theme) lipgloss.Style
}{
	{is(chroma.KeywordType), func(th *theme.Theme) lipgloss.Style { return th.SQLType }},
	{is(chroma.NameFunction, chroma.NameBuiltin), func(th *theme.Theme) lipgloss.Style { return th.SQLFunction }},
	{category(chroma.Keyword), func(th *theme.Theme) lipgloss.Style { return th.SQLKeyword }},
	{subCategory(chroma.LiteralString), func(th *theme.Theme) lipgloss.Style { return th.SQLString }},
	{subCategory(chroma.LiteralNumber), func(th *theme.Theme) lipgloss.Style { return th.SQLNumber }},
	{category(chroma.Comment), func(th *theme.Theme) lipgloss.Style { return th.SQLComment }},
	{is(chroma.Operator, chroma.OperatorWord), func(th *theme.Theme) lipgloss.Style { return th.SQLOperator }},
	{is(chroma.Name), func(th *theme.Theme) lipgloss.Style { return th.SQLIdentifier }},
}

func is(types ...chroma.TokenType) func(chroma.TokenType) bool {
	return func(tt chroma.TokenType) bool {
		for _, t := range types {
			if tt == t {
				return true
			}
		}
		return false
	}
}

func category(c chroma.TokenType) func(chroma.TokenType) bool {
	return func(tt chroma.TokenType) bool { return tt.InCategory(c) }
}

func subCategory(c chroma.TokenType) func(chroma.TokenType) bool {
	return func(tt chroma.TokenType) bool { return tt.InSubCategory(c) }
}

// Highlight returns sql with every token styled from th. Bind markers get
// the parameter style whatever the lexer calls them. A nil theme or a lexer
// error returns sql unchanged.
func (h *Highlighter) Highlight(sql string, th *theme.Theme) string {
	if th == nil {
		return sql
	}
	iter, err := h.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var b strings.Builder
	for _, tok := range iter.Tokens() {
		if tok.Value == "" {
			continue
		}
		style, ok := tokenStyle(tok, th)
		if !ok {
			b.WriteString(tok.Value)
			continue
		}
		// Styles are applied per line so line breaks stay outside the
		// escape sequences.
		for i, line := range strings.Split(tok.Value, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(style.Render(line))
			}
		}
	}
	return b.String()
}

func tokenStyle(tok chroma.Token, th *theme.Theme) (lipgloss.Style, bool) {
	if placeholder.MatchString(tok.Value) {
		return th.SQLParameter, true
	}
	for _, r := range tokenRules {
		if r.match(tok.Type) {
			return r.style(th), true
		}
	}
	return lipgloss.Style{}, false
}
