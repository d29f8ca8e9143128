package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is a named palette. Colors are hex strings.
type Theme struct {
	Name string

	Background, Surface, SurfaceAlt, FocusBg string
	SelectionBg, SelectionText               string

	Text, Muted, Faint, Accent     string
	Success, Warning, Danger, Info string

	Bar BarColors
}

// BarColors fill the torrent progress bars.
type BarColors struct {
	Track    string // unfilled part
	Idle     string // stopped or verifying
	Download string
	Seed     string
	Uploaded string // ratio overlay while seeding
}

// Styles are the text styles derived from a Theme.
type Styles struct {
	Text, MutedText, FaintText, AccentText         lipgloss.Style
	SuccessText, WarningText, DangerText, InfoText lipgloss.Style

	Brand  lipgloss.Style // program name in the header
	Header lipgloss.Style
	Footer lipgloss.Style
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// Styles builds the text styles for t.
func (t Theme) Styles() Styles {
	bar := lipgloss.NewStyle().Background(lipgloss.Color(t.Surface)).Padding(0, 1)
	return Styles{
		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Success).Bold(true),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),
		InfoText:    fg(t.Info),
		Brand:       fg(t.Accent).Bold(true),
		Header:      bar.Foreground(lipgloss.Color(t.Text)),
		Footer:      bar.Foreground(lipgloss.Color(t.Muted)),
	}
}

// WithBackground paints every style on color so segments joined on one
// line share a background.
func (s Styles) WithBackground(color string) Styles {
	bg := lipgloss.Color(color)
	for _, st := range []*lipgloss.Style{
		&s.Text, &s.MutedText, &s.FaintText, &s.AccentText,
		&s.SuccessText, &s.WarningText, &s.DangerText, &s.InfoText,
		&s.Brand, &s.Header, &s.Footer,
	} {
		*st = st.Background(bg)
	}
	return s
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

var themes = map[string]Theme{
	// https://github.com/EdenEast/nightfox.nvim
	"Nightfox": {
		Name: "Nightfox",

		Background: "#131a24",
		Surface:    "#192330",
		SurfaceAlt: "#212e3f",
		FocusBg:    "#29394f",

		SelectionBg:   "#2b3b51",
		SelectionText: "#cdcecf",

		Text:   "#cdcecf",
		Muted:  "#738091",
		Faint:  "#71839b",
		Accent: "#719cd6",

		Success: "#81b29a",
		Warning: "#dbc074",
		Danger:  "#c94f6d",
		Info:    "#63cdcf",

		Bar: BarColors{Track: "#212e3f", Idle: "#738091", Download: "#719cd6", Seed: "#81b29a", Uploaded: "#9d79d6"},
	},
	// https://github.com/rebelot/kanagawa.nvim
	"Kanagawa": {
		Name: "Kanagawa",

		Background: "#16161D",
		Surface:    "#1F1F28",
		SurfaceAlt: "#2A2A37",
		FocusBg:    "#2A2A37",

		SelectionBg:   "#2D4F67",
		SelectionText: "#DCD7BA",

		Text:   "#DCD7BA",
		Muted:  "#C8C093",
		Faint:  "#727169",
		Accent: "#7E9CD8",

		Success: "#98BB6C",
		Warning: "#E6C384",
		Danger:  "#E46876",
		Info:    "#7FB4CA",

		Bar: BarColors{Track: "#2A2A37", Idle: "#727169", Download: "#7E9CD8", Seed: "#98BB6C", Uploaded: "#957FB8"},
	},
	// Tailwind slate and sky
	"Slate": {
		Name: "Slate",

		Background: "#020617",
		Surface:    "#0f172a",
		SurfaceAlt: "#1e293b",
		FocusBg:    "#283548",

		SelectionBg:   "#0284c7",
		SelectionText: "#f8fafc",

		Text:   "#f1f5f9",
		Muted:  "#94a3b8",
		Faint:  "#64748b",
		Accent: "#38bdf8",

		Success: "#22c55e",
		Warning: "#f59e0b",
		Danger:  "#ef4444",
		Info:    "#06b6d4",

		Bar: BarColors{Track: "#1e293b", Idle: "#64748b", Download: "#0ea5e9", Seed: "#22c55e", Uploaded: "#14b8a6"},
	},
}

// GetTheme returns the named theme, or Nightfox when unknown.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[themeOrder[0]]
}

// NextTheme returns the theme after current in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames lists the themes in cycle order.
func ThemeNames() []string {
	return append([]string(nil), themeOrder...)
}
