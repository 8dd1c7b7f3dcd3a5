package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/askql/internal/adapter"
	"github.com/sadopc/askql/internal/nlq"
	"github.com/sadopc/askql/internal/theme"
)

// Format selects how output is written.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates s. "table" and "text" are interchangeable; each
// writer picks its own human-readable layout.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatTable, FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, table, csv, json or yaml)", s)
	}
}

// Renderer writes queries and results with a theme.
type Renderer struct {
	Theme *theme.Theme
	// MaxColumnWidth truncates table cells; zero disables truncation.
	MaxColumnWidth int
	// Debug adds the explanation, patterns and diagnostics to text output.
	Debug bool
}

// New returns a Renderer using th, or the current theme when th is nil.
func New(th *theme.Theme, maxColumnWidth int) *Renderer {
	if th == nil {
		th = theme.Current
	}
	return &Renderer{Theme: th, MaxColumnWidth: maxColumnWidth}
}

// ---------------------------------------------------------------------------
// Compiled queries
// ---------------------------------------------------------------------------

// Query writes q in format f. CSV is not meaningful for a query and is
// rejected.
func (r *Renderer) Query(w io.Writer, q *nlq.CompiledQuery, f Format) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, q)
	case FormatYAML:
		return writeYAML(w, q)
	case FormatText, FormatTable, "":
		_, err := io.WriteString(w, r.QueryText(q))
		return err
	default:
		return fmt.Errorf("format %q is not supported for compiled queries", f)
	}
}

// QueryText returns the human-readable form of q: highlighted SQL followed by
// its parameters, and in debug mode the explanation, patterns and
// diagnostics.
func (r *Renderer) QueryText(q *nlq.CompiledQuery) string {
	th := r.Theme
	var b strings.Builder

	b.WriteString(NewHighlighter(q.Dialect).Highlight(q.SQL, th))
	b.WriteString("\n\n")

	b.WriteString(th.Label.Render("Parameters:"))
	if len(q.Parameters) == 0 {
		b.WriteString(" " + th.MutedText.Render("(none)"))
	}
	b.WriteByte('\n')
	for i, p := range q.Parameters {
		fmt.Fprintf(&b, "  %s %s\n", th.SQLParameter.Render(fmt.Sprintf("%d.", i+1)), formatParam(p))
	}

	if !r.Debug {
		return b.String()
	}

	b.WriteByte('\n')
	b.WriteString(th.Label.Render("Explanation:") + " " + q.Explanation + "\n")
	b.WriteString(th.Label.Render("Patterns:") + " " + th.MutedText.Render(strings.Join(q.MatchedPatterns, ", ")) + "\n")
	for _, d := range q.Diagnostics {
		b.WriteString(th.WarningText.Render("  - "+d) + "\n")
	}
	return b.String()
}

// formatParam quotes string parameters so they read like SQL literals.
func formatParam(p any) string {
	if s, ok := p.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return fmt.Sprint(p)
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// Result writes res in format f.
func (r *Renderer) Result(w io.Writer, res *adapter.QueryResult, f Format) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, res)
	case FormatJSON:
		return writeJSON(w, rowObjects(res))
	case FormatYAML:
		return writeYAML(w, rowObjects(res))
	case FormatText, FormatTable, "":
		_, err := io.WriteString(w, r.Table(res)+"\n")
		return err
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// Answer writes an executed question. Text output is the result table,
// preceded by the compiled query in debug mode. JSON and YAML carry the
// request ID, the compiled query and the rows together.
func (r *Renderer) Answer(w io.Writer, id string, q *nlq.CompiledQuery, res *adapter.QueryResult, f Format) error {
	switch f {
	case FormatJSON, FormatYAML:
		doc := struct {
			ID       string             `json:"id" yaml:"id"`
			Query    *nlq.CompiledQuery `json:"query" yaml:"query"`
			Rows     []map[string]any   `json:"rows" yaml:"rows"`
			RowCount int64              `json:"row_count" yaml:"row_count"`
		}{id, q, rowObjects(res), res.RowCount}
		if f == FormatJSON {
			return writeJSON(w, doc)
		}
		return writeYAML(w, doc)
	case FormatText, FormatTable, "":
		if r.Debug {
			if _, err := io.WriteString(w, r.QueryText(q)+"\n"); err != nil {
				return err
			}
		}
	}
	return r.Result(w, res, f)
}

// Table renders res as a bordered table followed by a row count footer.
func (r *Renderer) Table(res *adapter.QueryResult) string {
	th := r.Theme
	if len(res.Columns) == 0 {
		return th.MutedText.Render("(no columns)")
	}

	headers := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		headers[i] = r.truncate(c.Name)
	}
	rows := make([][]string, len(res.Rows))
	for i, row := range res.Rows {
		cells := make([]string, len(res.Columns))
		for j := range cells {
			if j < len(row) {
				cells[j] = r.truncate(row[j])
			}
		}
		rows[i] = cells
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(th.ResultsBorder).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return th.ResultsHeader
			}
			if row >= 0 && row < len(rows) && col < len(rows[row]) && rows[row][col] == adapter.NullText {
				return th.ResultsNull.PaddingLeft(1).PaddingRight(1)
			}
			return th.ResultsCell
		})

	footer := fmt.Sprintf("%d row", res.RowCount)
	if res.RowCount != 1 {
		footer += "s"
	}
	if res.Duration > 0 {
		footer += fmt.Sprintf(" in %s", res.Duration.Round(time.Millisecond))
	}
	return t.String() + "\n" + th.MutedText.Render(footer)
}

func (r *Renderer) truncate(s string) string {
	if r.MaxColumnWidth <= 0 {
		return s
	}
	return runewidth.Truncate(s, r.MaxColumnWidth, "…")
}

// columnNames extracts the names of cols.
func columnNames(cols []adapter.ColumnMeta) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// writeCSV writes one record per row, each with exactly one field per column.
// Short rows are padded with empty fields.
func writeCSV(w io.Writer, res *adapter.QueryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columnNames(res.Columns)); err != nil {
		return err
	}
	record := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for j := range record {
			record[j] = ""
			if j < len(row) {
				record[j] = row[j]
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// rowObjects converts res into one map per row keyed by column name. NULL
// cells become nil; cells missing from short rows become empty strings.
func rowObjects(res *adapter.QueryResult) []map[string]any {
	names := columnNames(res.Columns)
	out := make([]map[string]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		obj := make(map[string]any, len(names))
		for j, name := range names {
			switch {
			case j >= len(row):
				obj[name] = ""
			case row[j] == adapter.NullText:
				obj[name] = nil
			default:
				obj[name] = row[j]
			}
		}
		out = append(out, obj)
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML encodes v and flushes the encoder.
func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
