package ui

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/transmon/internal/monitor"
	"github.com/five82/transmon/internal/prefs"
	"github.com/five82/transmon/internal/transmission"
)

// RowLayout selects how torrent rows are drawn.
type RowLayout int

const (
	// RowDetailed draws name, info line, progress bar and size line.
	RowDetailed RowLayout = iota
	// RowCompact draws one line per torrent.
	RowCompact
)

// ParseRowLayout maps a prefs value to a layout. Unknown values are detailed.
func ParseRowLayout(s string) RowLayout {
	if strings.EqualFold(strings.TrimSpace(s), prefs.LayoutCompact) {
		return RowCompact
	}
	return RowDetailed
}

func (l RowLayout) String() string {
	if l == RowCompact {
		return prefs.LayoutCompact
	}
	return prefs.LayoutDetailed
}

// Next returns the other layout.
func (l RowLayout) Next() RowLayout {
	if l == RowCompact {
		return RowDetailed
	}
	return RowCompact
}

// Height is the number of lines one row occupies.
func (l RowLayout) Height() int {
	if l == RowCompact {
		return 1
	}
	return 4
}

// toggleAction is the start/stop action offered for t.
func toggleAction(t transmission.Torrent) monitor.Action {
	if t.Status.IsIdle() {
		return monitor.ActionStart
	}
	return monitor.ActionStop
}

// renderRow draws t in the given layout, width columns wide.
func (m Model) renderRow(t transmission.Torrent, selected bool, width int) string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Background)
	if selected {
		bg = NewBgStyle(m.theme.SelectionBg)
		styles = styles.WithBackground(m.theme.SelectionBg)
	}

	marker := bg.Spaces(2)
	if selected {
		marker = bg.Render("▌", styles.AccentText) + bg.Space()
	}
	inner := width - 2
	if inner < 10 {
		inner = 10
	}

	info := DescribeTorrent(t)
	seedsStyle := styles.MutedText
	if info.Error {
		seedsStyle = styles.DangerText
	}

	switch m.layout {
	case RowCompact:
		percent := strconv.FormatFloat(t.PercentDone*100, 'f', 1, 64) + "%"
		barWidth := clamp(inner/4, 10, 30)
		nameWidth := inner - barWidth - len(percent) - 4
		name := truncate(t.Name, nameWidth)
		pad := nameWidth - lipgloss.Width(name)
		line := marker +
			bg.Render(name, styles.Text) + bg.Spaces(pad+2) +
			progressBar(t, barWidth, m.theme.Bar) + bg.Space() +
			bg.Render(percent, seedsStyle)
		return bg.FillLine(line, width)

	default:
		title := bg.Render(truncate(t.Name, inner), styles.Text.Bold(true))
		if selected {
			hint := toggleAction(t).String() + "  x remove"
			if avail := inner - lipgloss.Width(title) - 2; avail > len(hint)+2 {
				title += bg.Spaces(avail-len(hint)) + bg.Render("s "+hint, styles.FaintText)
			}
		}
		lines := []string{
			marker + title,
			marker + bg.Render(truncate(info.Seeds, inner), seedsStyle),
			marker + progressBar(t, inner, m.theme.Bar),
			marker + bg.Render(truncate(info.Size, inner), styles.FaintText),
		}
		for i, line := range lines {
			lines[i] = bg.FillLine(line, width)
		}
		return strings.Join(lines, "\n")
	}
}

// progressBar draws completion colored by state. Seeding torrents also show
// the upload ratio on the upper half of the cells.
func progressBar(t transmission.Torrent, width int, colors BarColors) string {
	if width <= 0 {
		return ""
	}
	fill := colors.Track
	overlay := 0
	switch {
	case t.Status.IsIdle():
		fill = colors.Idle
	case t.Status.IsDownloading():
		fill = colors.Download
	case t.Status.IsSeeding():
		fill = colors.Seed
		overlay = int(math.Round(float64(width) * UploadedFraction(t)))
	}
	done := int(math.Round(float64(width) * clampFloat(t.PercentDone, 0, 1)))

	track := lipgloss.NewStyle().Foreground(lipgloss.Color(colors.Track))
	filled := lipgloss.NewStyle().Foreground(lipgloss.Color(fill))
	uploaded := lipgloss.NewStyle().
		Foreground(lipgloss.Color(colors.Uploaded)).
		Background(lipgloss.Color(fill))

	overlay = min(overlay, done)
	var b strings.Builder
	if overlay > 0 {
		b.WriteString(uploaded.Render(strings.Repeat("▀", overlay)))
	}
	if done > overlay {
		b.WriteString(filled.Render(strings.Repeat("█", done-overlay)))
	}
	if width > done {
		b.WriteString(track.Render(strings.Repeat("░", width-done)))
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
