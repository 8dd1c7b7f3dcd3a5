// Package theme holds the lipgloss styles askql renders with. Every styled
// element of the CLI and the REPL references a style held in a Theme so the
// look can be swapped from config.
package theme

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds lipgloss.Style values for every rendered element.
type Theme struct {
	Name string

	// SQL syntax highlighting
	SQLKeyword    lipgloss.Style
	SQLString     lipgloss.Style
	SQLNumber     lipgloss.Style
	SQLComment    lipgloss.Style
	SQLOperator   lipgloss.Style
	SQLFunction   lipgloss.Style
	SQLType       lipgloss.Style
	SQLIdentifier lipgloss.Style
	SQLParameter  lipgloss.Style

	// Result tables
	ResultsBorder lipgloss.Style
	ResultsHeader lipgloss.Style
	ResultsCell   lipgloss.Style
	ResultsNull   lipgloss.Style

	// Compiled query sections and the REPL
	Title  lipgloss.Style
	Label  lipgloss.Style
	Prompt lipgloss.Style

	ErrorText   lipgloss.Style
	WarningText lipgloss.Style
	MutedText   lipgloss.Style
}

// palette is the handful of colors a theme is derived from.
type palette struct {
	keyword, str, number, comment lipgloss.Color
	operator, function, typ       lipgloss.Color
	ident, param                  lipgloss.Color

	text, muted, border lipgloss.Color
	accent, title       lipgloss.Color
	errColor, warn      lipgloss.Color

	// italicTypes renders type names in italics.
	italicTypes bool
}

func (p palette) build(name string) *Theme {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	bold := func(c lipgloss.Color) lipgloss.Style { return fg(c).Bold(true) }
	cell := func(s lipgloss.Style) lipgloss.Style { return s.Padding(0, 1) }

	return &Theme{
		Name: name,

		SQLKeyword:    bold(p.keyword),
		SQLString:     fg(p.str),
		SQLNumber:     fg(p.number),
		SQLComment:    fg(p.comment).Italic(true),
		SQLOperator:   fg(p.operator),
		SQLFunction:   fg(p.function),
		SQLType:       fg(p.typ).Italic(p.italicTypes),
		SQLIdentifier: fg(p.ident),
		SQLParameter:  bold(p.param),

		ResultsBorder: fg(p.border),
		ResultsHeader: cell(bold(p.accent)),
		ResultsCell:   cell(fg(p.text)),
		ResultsNull:   fg(p.muted).Italic(true),

		Title:  bold(p.title),
		Label:  bold(p.accent),
		Prompt: bold(p.typ),

		ErrorText:   bold(p.errColor),
		WarningText: fg(p.warn),
		MutedText:   fg(p.muted),
	}
}

var (
	// darkPalette follows VS Code's Dark+.
	darkPalette = palette{
		keyword: "#569CD6", str: "#CE9178", number: "#B5CEA8", comment: "#6A9955",
		operator: "#D4D4D4", function: "#DCDCAA", typ: "#4EC9B0",
		ident: "#9CDCFE", param: "#C586C0",
		text: "#D4D4D4", muted: "#808080", border: "#3C3C3C",
		accent: "#569CD6", title: "#DCDCAA",
		errColor: "#F44747", warn: "#CCA700",
	}

	lightPalette = palette{
		keyword: "#0000FF", str: "#A31515", number: "#098658", comment: "#008000",
		operator: "#1E1E1E", function: "#795E26", typ: "#267F99",
		ident: "#001080", param: "#AF00DB",
		text: "#1E1E1E", muted: "#A0A0A0", border: "#D4D4D4",
		accent: "#0451A5", title: "#795E26",
		errColor: "#E51400", warn: "#BF8803",
	}

	monokaiPalette = palette{
		keyword: "#F92672", str: "#E6DB74", number: "#AE81FF", comment: "#75715E",
		operator: "#F92672", function: "#A6E22E", typ: "#66D9EF",
		ident: "#F8F8F2", param: "#FD971F",
		text: "#F8F8F2", muted: "#75715E", border: "#49483E",
		accent: "#A6E22E", title: "#E6DB74",
		errColor: "#F92672", warn: "#E6DB74",
		italicTypes: true,
	}
)

// Themes maps theme names to their Theme definitions.
var Themes = map[string]*Theme{
	"default": darkPalette.build("default"),
	"light":   lightPalette.build("light"),
	"monokai": monokaiPalette.build("monokai"),
}

// Current is the active theme. The CLI replaces it from config at startup.
var Current = Default()

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Get returns the named theme, or the default theme for an unknown name.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}

// Names returns the registered theme names, sorted.
func Names() []string {
	names := make([]string, 0, len(Themes))
	for name := range Themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
