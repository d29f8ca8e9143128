package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit         key.Binding
	Help         key.Binding
	CycleTheme   key.Binding
	ToggleLayout key.Binding
	ToggleLogs   key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Torrent actions
	Toggle   key.Binding
	StartAll key.Binding
	StopAll  key.Binding
	Remove   key.Binding
	Add      key.Binding
	AltSpeed key.Binding

	// Prompts
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		ToggleLayout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Detailed/compact rows"),
		),
		ToggleLogs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Toggle log pane"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),

		Toggle: key.NewBinding(
			key.WithKeys("s", " "),
			key.WithHelp("s", "Start/stop selected"),
		),
		StartAll: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "Start all"),
		),
		StopAll: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "Stop all"),
		),
		Remove: key.NewBinding(
			key.WithKeys("x", "delete"),
			key.WithHelp("x", "Remove selected"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Add torrent"),
		),
		AltSpeed: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "Toggle alt speed"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter", "y"),
			key.WithHelp("enter", "Confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "n"),
			key.WithHelp("esc", "Cancel"),
		),
	}
}

// ShortHelp returns keybindings for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Add, k.Remove, k.AltSpeed, k.Help, k.Quit}
}

// FullHelp returns keybindings grouped for the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Toggle, k.StartAll, k.StopAll, k.Remove, k.Add, k.AltSpeed},
		{k.CycleTheme, k.ToggleLayout, k.ToggleLogs, k.Help, k.Quit},
	}
}
