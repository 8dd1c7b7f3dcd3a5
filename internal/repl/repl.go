// Package repl is the interactive compile loop: type a question, see the SQL.
package repl

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/askql/internal/nlq"
	"github.com/sadopc/askql/internal/render"
	"github.com/sadopc/askql/internal/schema"
)

// Compiler turns a question into SQL and can rediscover the schema it
// compiles against. *service.Asker satisfies it.
type Compiler interface {
	Compile(ctx context.Context, req nlq.Request) (*nlq.CompiledQuery, error)
	Refresh(ctx context.Context) (*schema.Catalog, error)
}

// compiledMsg carries the outcome of an asynchronous compile.
type compiledMsg struct {
	question string
	query    *nlq.CompiledQuery
	err      error
}

type reloadedMsg struct {
	tables int
	err    error
}

// Model is the bubbletea model of the REPL.
type Model struct {
	ctx      context.Context
	compiler Compiler
	renderer *render.Renderer
	input    textinput.Model
	keys     KeyMap
	help     help.Model

	// recall holds previous questions oldest first; pos == len(recall) means
	// the user is editing a fresh line, saved in draft while browsing.
	recall []string
	pos    int
	draft  string

	question string
	output   string
	err      error
	notice   string
	busy     bool
	quitting bool
}

// New creates a REPL model. recall seeds Up/Down navigation, oldest first.
func New(ctx context.Context, c Compiler, r *render.Renderer, recall []string) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask a question, e.g. total pipeline for sales this quarter"
	ti.Prompt = r.Theme.Prompt.Render("ask> ")
	ti.CharLimit = 500
	ti.Width = 80
	ti.Focus()

	h := help.New()
	h.Styles.ShortKey = r.Theme.Label
	h.Styles.ShortDesc = r.Theme.MutedText
	h.Styles.ShortSeparator = r.Theme.MutedText

	seeded := append([]string(nil), recall...)
	return Model{
		ctx:      ctx,
		compiler: c,
		renderer: r,
		input:    ti,
		keys:     DefaultKeyMap(),
		help:     h,
		recall:   seeded,
		pos:      len(seeded),
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key presses and compile results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.input.Width = max(msg.Width-10, 20)
		m.help.Width = msg.Width
		return m, nil

	case compiledMsg:
		m.busy = false
		m.notice = ""
		m.question = msg.question
		m.err = msg.err
		m.output = ""
		if msg.err == nil {
			m.output = m.renderer.QueryText(msg.query)
		}
		return m, nil

	case reloadedMsg:
		m.busy = false
		if msg.err != nil {
			m.notice = "schema reload failed: " + msg.err.Error()
		} else {
			m.notice = fmt.Sprintf("schema reloaded: %d tables", msg.tables)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.ToggleDebug):
			m.renderer.Debug = !m.renderer.Debug
			return m, nil
		case key.Matches(msg, m.keys.Reload):
			return m.reload()
		case key.Matches(msg, m.keys.Prev):
			m.recallPrev()
			return m, nil
		case key.Matches(msg, m.keys.Next):
			m.recallNext()
			return m, nil
		case key.Matches(msg, m.keys.Compile):
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" || m.busy {
		return m, nil
	}
	if q == "exit" || q == "quit" {
		m.quitting = true
		return m, tea.Quit
	}

	if n := len(m.recall); n == 0 || m.recall[n-1] != q {
		m.recall = append(m.recall, q)
	}
	m.pos = len(m.recall)
	m.draft = ""
	m.input.SetValue("")
	m.busy = true

	ctx, c := m.ctx, m.compiler
	return m, func() tea.Msg {
		cq, err := c.Compile(ctx, nlq.Request{Question: q})
		return compiledMsg{question: q, query: cq, err: err}
	}
}

// reload rediscovers the schema so later questions see new tables.
func (m Model) reload() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	m.busy = true
	ctx, c := m.ctx, m.compiler
	return m, func() tea.Msg {
		cat, err := c.Refresh(ctx)
		if err != nil {
			return reloadedMsg{err: err}
		}
		return reloadedMsg{tables: len(cat.Tables)}
	}
}

func (m *Model) recallPrev() {
	if m.pos == 0 {
		return
	}
	if m.pos == len(m.recall) {
		m.draft = m.input.Value()
	}
	m.pos--
	m.input.SetValue(m.recall[m.pos])
	m.input.CursorEnd()
}

func (m *Model) recallNext() {
	if m.pos >= len(m.recall) {
		return
	}
	m.pos++
	if m.pos == len(m.recall) {
		m.input.SetValue(m.draft)
	} else {
		m.input.SetValue(m.recall[m.pos])
	}
	m.input.CursorEnd()
}

// View renders the last result above the input line.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	th := m.renderer.Theme

	var sections []string
	sections = append(sections, th.Title.Render("askql")+"  "+m.help.View(m.keys))

	switch {
	case m.busy:
		sections = append(sections, th.MutedText.Render("working..."))
	case m.err != nil:
		sections = append(sections,
			th.MutedText.Render("> "+m.question),
			th.ErrorText.Render("error: "+m.err.Error()))
	case m.output != "":
		sections = append(sections,
			th.MutedText.Render("> "+m.question),
			strings.TrimRight(m.output, "\n"))
	}

	if m.notice != "" && !m.busy {
		sections = append(sections, th.WarningText.Render(m.notice))
	}

	sections = append(sections, "", m.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

// Run starts the REPL on the terminal and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, c Compiler, r *render.Renderer, recall []string) error {
	p := tea.NewProgram(New(ctx, c, r, recall), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
