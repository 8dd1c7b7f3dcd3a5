package theme

import (
	"reflect"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestRegistry(t *testing.T) {
	if got := Names(); !reflect.DeepEqual(got, []string{"default", "light", "monokai"}) {
		t.Fatalf("Names() = %v", got)
	}
	seen := map[*Theme]bool{}
	for name, th := range Themes {
		if th.Name != name {
			t.Errorf("theme registered as %q is named %q", name, th.Name)
		}
		if seen[th] {
			t.Errorf("theme %q shares its value with another name", name)
		}
		seen[th] = true
	}
	if Current != Default() || Default().Name != "default" {
		t.Errorf("Current = %q, want the default theme", Current.Name)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"light", "light"},
		{"monokai", "monokai"},
		{"solarized", "default"},
		{"", "default"},
	}
	for _, tt := range tests {
		if got := Get(tt.name).Name; got != tt.want {
			t.Errorf("Get(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestBuild(t *testing.T) {
	th := monokaiPalette.build("monokai")

	if th.SQLKeyword.GetForeground() != lipgloss.Color("#F92672") || !th.SQLKeyword.GetBold() {
		t.Error("keywords should be bold in the keyword color")
	}
	if th.SQLParameter.GetForeground() != lipgloss.Color("#FD971F") {
		t.Error("placeholders should use the parameter color")
	}
	if !th.SQLType.GetItalic() || darkPalette.build("default").SQLType.GetItalic() {
		t.Error("only monokai renders types in italics")
	}
	if !th.SQLComment.GetItalic() || !th.ResultsNull.GetItalic() {
		t.Error("comments and NULL cells should be italic")
	}
	for _, s := range []lipgloss.Style{th.ResultsHeader, th.ResultsCell} {
		if s.GetPaddingLeft() != 1 || s.GetPaddingRight() != 1 || s.GetPaddingTop() != 0 {
			t.Error("table cells should be padded one column on each side")
		}
	}
}

func TestStylesRender(t *testing.T) {
	for name, th := range Themes {
		v := reflect.ValueOf(*th)
		for i := 0; i < v.NumField(); i++ {
			s, ok := v.Field(i).Interface().(lipgloss.Style)
			if !ok {
				continue
			}
			if s.Render("x") == "" {
				t.Errorf("%s: %s renders nothing", name, v.Type().Field(i).Name)
			}
		}
	}
}
