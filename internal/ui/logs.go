package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/transmon/internal/logtail"
)

const logTailLines = 200

type logsMsg struct {
	lines []string
	err   error
}

func readLogsCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, logTailLines)
		return logsMsg{lines: lines, err: err}
	}
}

func (m *Model) handleLogs(msg logsMsg) {
	if msg.err != nil {
		m.logLines = []string{"log unavailable: " + msg.err.Error()}
	} else {
		m.logLines = msg.lines
	}
	m.refreshLogViewport()
}

func (m Model) logPaneHeight() int {
	return clamp(m.height/3, 3, 12)
}

func (m *Model) resizeLogViewport() {
	if m.logViewport.Width == 0 {
		m.logViewport = viewport.New(m.width, m.logPaneHeight())
	}
	m.logViewport.Width = m.width
	m.logViewport.Height = m.logPaneHeight()
	m.refreshLogViewport()
}

func (m *Model) refreshLogViewport() {
	styles := m.theme.Styles()
	colored := make([]string, 0, len(m.logLines))
	for _, line := range m.logLines {
		line = truncate(line, m.width-1)
		switch logtail.Level(line) {
		case "error":
			colored = append(colored, styles.DangerText.Render(line))
		case "warn":
			colored = append(colored, styles.WarningText.Render(line))
		default:
			colored = append(colored, styles.MutedText.Render(line))
		}
	}
	m.logViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	m.logViewport.SetContent(strings.Join(colored, "\n"))
	m.logViewport.GotoBottom()
}

// renderLogs renders the log pane: a title bar over the tail of the log file.
func (m Model) renderLogs() string {
	styles := m.theme.Styles().WithBackground(m.theme.SurfaceAlt)
	bg := NewBgStyle(m.theme.SurfaceAlt)
	title := bg.Render("Log", styles.AccentText.Bold(true))
	if m.logPath != "" {
		title += bg.Spaces(2) + bg.Render(truncate(m.logPath, m.width-8), styles.FaintText)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		bg.FillLine(bg.Space()+title, m.width),
		m.logViewport.View(),
	)
}
