package repl

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the REPL keybindings.
type KeyMap struct {
	Compile     key.Binding
	Prev        key.Binding
	Next        key.Binding
	ToggleDebug key.Binding
	Reload      key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the standard REPL keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Compile: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "compile"),
		),
		Prev: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("up", "previous"),
		),
		Next: key.NewBinding(
			key.WithKeys("down", "ctrl+n"),
			key.WithHelp("down", "next"),
		),
		ToggleDebug: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "debug"),
		),
		Reload: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reload schema"),
		),
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Compile, k.Prev, k.Next, k.ToggleDebug, k.Reload, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
