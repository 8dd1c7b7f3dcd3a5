package history

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func openTemp(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

// addQuestions records qs one minute apart, the last one newest.
func addQuestions(t *testing.T, h *History, qs ...string) {
	t.Helper()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, q := range qs {
		if err := h.Add(Entry{Question: q, ExecutedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("Add(%q) error = %v", q, err)
		}
	}
}

func questionsOf(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Question
	}
	return out
}

func TestNew_UsesConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	h, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer h.Close()

	// ConfigDir differs between macOS and XDG systems.
	var found bool
	for _, p := range []string{
		filepath.Join(home, ".config", "askql", "history.db"),
		filepath.Join(home, "Library", "Application Support", "askql", "history.db"),
	} {
		if _, err := os.Stat(p); err == nil {
			found = true
		}
	}
	if !found {
		t.Error("history.db not created under the config dir")
	}
}

func TestOpen_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "history.db")
	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	h.Close()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestAdd_RoundTrip(t *testing.T) {
	h := openTemp(t)
	want := Entry{
		RequestID:    "0b8e5c1a-7f3d-4a43-9c55-2f0f2d5c8a11",
		Question:     "top 5 pipeline deals in q4",
		SQL:          "SELECT d.name FROM metrics m LIMIT 5",
		Dialect:      "postgres",
		Patterns:     []string{"date_filter_q4", "metric_filter", "comparison_top", "limit_results"},
		Adapter:      "postgres",
		DatabaseName: "analytics",
		ExecutedAt:   time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC),
		DurationMS:   1234,
		RowCount:     5,
		IsError:      true,
	}
	if err := h.Add(want); err != nil {
		t.Fatal(err)
	}

	got, err := h.Recent(1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent(1) = %v, %v", got, err)
	}
	if got[0].ID == 0 {
		t.Error("ID not assigned")
	}
	if !got[0].ExecutedAt.Equal(want.ExecutedAt) {
		t.Errorf("ExecutedAt = %v, want %v", got[0].ExecutedAt, want.ExecutedAt)
	}
	got[0].ID, got[0].ExecutedAt = 0, want.ExecutedAt
	if !reflect.DeepEqual(got[0], want) {
		t.Errorf("entry = %+v\nwant    %+v", got[0], want)
	}
}

func TestAdd_DefaultsTimestamp(t *testing.T) {
	h := openTemp(t)
	before := time.Now().Add(-time.Second)
	if err := h.Add(Entry{Question: "arr"}); err != nil {
		t.Fatal(err)
	}
	got, _ := h.Recent(1)
	if len(got) != 1 || got[0].ExecutedAt.Before(before) || got[0].Patterns != nil {
		t.Errorf("entry = %+v", got)
	}
}

func TestRecent(t *testing.T) {
	h := openTemp(t)
	if got, err := h.Recent(10); err != nil || len(got) != 0 {
		t.Fatalf("Recent() on empty store = %v, %v", got, err)
	}

	addQuestions(t, h, "A", "B", "C", "D", "E")
	tests := []struct {
		limit int
		want  []string
	}{
		{3, []string{"E", "D", "C"}},
		{100, []string{"E", "D", "C", "B", "A"}},
	}
	for _, tt := range tests {
		got, err := h.Recent(tt.limit)
		if err != nil {
			t.Fatal(err)
		}
		if q := questionsOf(got); !reflect.DeepEqual(q, tt.want) {
			t.Errorf("Recent(%d) = %v, want %v", tt.limit, q, tt.want)
		}
	}
}

func TestSearch(t *testing.T) {
	h := openTemp(t)
	addQuestions(t, h,
		"arr this year",
		"net new ARR in q1",
		"headcount this year",
		"growth_rate by 10% or more",
		"show arr by department",
	)

	tests := []struct {
		text string
		want []string
	}{
		{"arr", []string{"show arr by department", "net new ARR in q1", "arr this year"}},
		{"this year", []string{"headcount this year", "arr this year"}},
		{"10%", []string{"growth_rate by 10% or more"}},
		{"_rate", []string{"growth_rate by 10% or more"}},
		{"h_a", nil},
		{"attrition", nil},
	}
	for _, tt := range tests {
		got, err := h.Search(tt.text, 10)
		if err != nil {
			t.Fatalf("Search(%q) error = %v", tt.text, err)
		}
		if len(got) != len(tt.want) || (len(got) > 0 && !reflect.DeepEqual(questionsOf(got), tt.want)) {
			t.Errorf("Search(%q) = %v, want %v", tt.text, questionsOf(got), tt.want)
		}
	}

	if got, _ := h.Search("arr", 1); len(got) != 1 {
		t.Errorf("Search() ignored its limit: %d entries", len(got))
	}
}

func TestQuestions(t *testing.T) {
	h := openTemp(t)
	addQuestions(t, h, "arr this year", "burn last month", "arr this year", "q4 pipeline")

	got, err := h.Questions(10)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"burn last month", "arr this year", "q4 pipeline"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Questions(10) = %v, want %v", got, want)
	}
	if got, _ := h.Questions(1); !reflect.DeepEqual(got, []string{"q4 pipeline"}) {
		t.Errorf("Questions(1) = %v", got)
	}
}

func TestClear(t *testing.T) {
	h := openTemp(t)
	addQuestions(t, h, "A", "B")
	if err := h.Clear(); err != nil {
		t.Fatal(err)
	}
	if got, _ := h.Recent(10); len(got) != 0 {
		t.Errorf("Recent() after Clear = %v", questionsOf(got))
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	addQuestions(t, h, "first", "second")
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	h, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	got, _ := h.Recent(10)
	if q := questionsOf(got); !reflect.DeepEqual(q, []string{"second", "first"}) {
		t.Errorf("Recent() after reopen = %v", q)
	}
}
