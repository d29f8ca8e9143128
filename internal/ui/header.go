package ui

const (
	enabledIcon = "⇅"
	errorIcon   = "✗"
)

// renderHeader renders the indicator bar: logo, icon and status text.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	parts := []string{bg.Render("transmon", styles.Brand)}

	switch {
	case !m.online():
		// The indicator disappears with the daemon unless asked to stay.
		if m.alwaysShow {
			parts = append(parts, bg.Render(errorIcon, styles.DangerText))
		}
		parts = append(parts, bg.Render("Retrying...", styles.WarningText.Bold(true)))

	case !m.snapshot.HasStats && !m.snapshot.HasSession:
		parts = append(parts, bg.Render(connectingText, styles.WarningText.Bold(true)))

	default:
		parts = append(parts, bg.Render(enabledIcon+StatusText(m.snapshot.Stats, m.header), styles.AccentText))
		if m.snapshot.HasSession {
			if m.snapshot.Session.AltSpeedEnabled {
				parts = append(parts, bg.Render("ALT SPEED", styles.WarningText.Bold(true)))
			}
			if v := m.snapshot.Session.Version; v != "" {
				parts = append(parts, bg.Render("Transmission "+v, styles.MutedText))
			}
		}
		if !m.snapshot.LastUpdated.IsZero() {
			parts = append(parts, bg.Render(m.snapshot.LastUpdated.Format("15:04:05"), styles.FaintText))
		}
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// renderInfoLine renders the session summary, or the connection error.
func (m Model) renderInfoLine() string {
	styles := m.theme.Styles().WithBackground(m.theme.Background)
	bg := NewBgStyle(m.theme.Background)

	var line string
	switch {
	case !m.online():
		line = bg.Render(truncate(m.connError, m.width-2), styles.DangerText)
	case !m.snapshot.HasStats:
		line = bg.Render(connectingText, styles.MutedText)
	default:
		line = bg.Render(InfoText(m.snapshot.Stats), styles.Text)
		if m.webURL != "" {
			line += bg.Spaces(2) + bg.Render(m.webURL, styles.FaintText)
		}
	}
	return bg.FillLine(bg.Space()+line, m.width)
}
