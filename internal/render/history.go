package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/sadopc/askql/internal/history"
)

// History writes history entries, newest first as given.
func (r *Renderer) History(w io.Writer, entries []history.Entry, f Format) error {
	switch f {
	case FormatJSON, FormatYAML:
		if entries == nil {
			entries = []history.Entry{}
		}
		if f == FormatJSON {
			return writeJSON(w, entries)
		}
		return writeYAML(w, entries)
	case FormatText, FormatTable, "":
	default:
		return fmt.Errorf("format %q is not supported for history", f)
	}

	th := r.Theme
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, th.MutedText.Render("No history entries"))
		return err
	}
	width := r.MaxColumnWidth
	if width <= 0 {
		width = 60
	}
	for _, e := range entries {
		line := formatEntry(e, width)
		if e.IsError {
			line = th.ErrorText.Render(line)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, th.MutedText.Render(fmt.Sprintf("%d entries", len(entries))))
	return err
}

// formatEntry renders one entry as the question, padded or cut to width,
// followed by its metadata.
func formatEntry(e history.Entry, width int) string {
	question, _, _ := strings.Cut(strings.TrimSpace(e.Question), "\n")
	question = runewidth.FillRight(runewidth.Truncate(strings.TrimSpace(question), width, "..."), width)

	meta := []string{humanize.Comma(e.RowCount) + " rows"}
	if e.Adapter != "" {
		meta = append([]string{e.Adapter}, meta...)
	}
	if e.DurationMS > 0 {
		meta = append(meta, formatDuration(e.DurationMS))
	}
	meta = append(meta, RelativeTime(e.ExecutedAt))
	return question + "  " + strings.Join(meta, " | ")
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return d.String()
	}
	return d.Round(100 * time.Millisecond).String()
}

// RelativeTime describes how long ago t was, such as "5 minutes ago".
// Anything under a minute is "just now".
func RelativeTime(t time.Time) string {
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}
