package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/askql/internal/history"
)

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		offset time.Duration
		want   string
	}{
		{5 * time.Second, "just now"},
		{5 * time.Minute, "5 minutes ago"},
		{2 * time.Hour, "2 hours ago"},
		{36 * time.Hour, "1 day ago"},
		{72 * time.Hour, "3 days ago"},
	}
	for _, tt := range tests {
		got := RelativeTime(time.Now().Add(-tt.offset))
		if got != tt.want {
			t.Errorf("RelativeTime(-%v) = %q, want %q", tt.offset, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[int64]string{42: "42ms", 1500: "1.5s", 1234: "1.2s"}
	for ms, want := range tests {
		if got := formatDuration(ms); got != want {
			t.Errorf("formatDuration(%d) = %q, want %q", ms, got, want)
		}
	}
}

func TestFormatEntryTruncation(t *testing.T) {
	e := history.Entry{
		Question:   "show me the total pipeline for the sales department broken down by every single quarter of this year",
		Adapter:    "postgres",
		DurationMS: 42,
		RowCount:   12345,
		ExecutedAt: time.Now(),
	}
	line := formatEntry(e, 30)
	if strings.Contains(line, "every single quarter") {
		t.Errorf("question not truncated: %q", line)
	}
	for _, want := range []string{"...", "postgres", "12,345 rows", "42ms", "just now"} {
		if !strings.Contains(line, want) {
			t.Errorf("line missing %q: %q", want, line)
		}
	}
}

func TestHistory_Text(t *testing.T) {
	r := New(nil, 0)

	var empty bytes.Buffer
	if err := r.History(&empty, nil, FormatText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(empty.String(), "No history entries") {
		t.Errorf("empty history = %q", empty.String())
	}

	var buf bytes.Buffer
	entries := []history.Entry{
		{Question: "arr this year", RowCount: 1, ExecutedAt: time.Now()},
		{Question: "burn rate", IsError: true, ExecutedAt: time.Now()},
	}
	if err := r.History(&buf, entries, FormatText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "arr this year") || !strings.Contains(out, "burn rate") || !strings.Contains(out, "2 entries") {
		t.Errorf("history text = %q", out)
	}
}

func TestHistory_JSON(t *testing.T) {
	var buf bytes.Buffer
	entries := []history.Entry{{
		RequestID: "abc",
		Question:  "arr in q1",
		Patterns:  []string{"date_filter_q1", "metric_filter"},
		Dialect:   "sqlite",
	}}
	if err := New(nil, 0).History(&buf, entries, FormatJSON); err != nil {
		t.Fatal(err)
	}
	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 1 || got[0]["question"] != "arr in q1" || got[0]["request_id"] != "abc" {
		t.Errorf("decoded = %v", got)
	}
	if err := New(nil, 0).History(&buf, entries, FormatCSV); err == nil {
		t.Error("History() accepted csv")
	}
}
