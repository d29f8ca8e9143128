package ui

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/transmon/internal/monitor"
	"github.com/five82/transmon/internal/prefs"
	"github.com/five82/transmon/internal/state"
	"github.com/five82/transmon/internal/transmission"
)

const (
	uiTick       = time.Second
	flashTimeout = 4 * time.Second
)

// Controller is the part of the monitor the UI drives. *monitor.Monitor
// implements it.
type Controller interface {
	SendAction(action monitor.Action, ids ...int)
	AddTorrent(filename string)
	SetAltSpeedEnabled(enabled bool)
	SetPollInterval(d time.Duration)
}

// Options configures the UI.
type Options struct {
	Store      *state.Store
	Controller Controller

	// Bridge, when set, is attached to the program so monitor events reach
	// the model as they happen.
	Bridge *Bridge

	Header     HeaderOptions
	AlwaysShow bool
	WebURL     string

	// ActiveInterval applies while the terminal has focus, IdleInterval
	// after it loses it.
	ActiveInterval time.Duration
	IdleInterval   time.Duration

	ThemeName string
	Layout    string
	PrefsPath string
	LogPath   string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	store      *state.Store
	ctrl       Controller
	keys       keyMap
	header     HeaderOptions
	alwaysShow bool
	webURL     string
	active     time.Duration
	idle       time.Duration
	prefsPath  string
	logPath    string

	// UI state
	theme    Theme
	layout   RowLayout
	width    int
	height   int
	ready    bool
	showHelp bool
	focused  bool // terminal reported focus; polling at the active interval

	// Data state
	snapshot  state.Snapshot
	connError string

	// List state
	selected   int
	selectedID int
	offset     int

	// Prompts
	confirmRemove bool
	removeID      int
	adding        bool
	input         textinput.Model

	// Transient feedback
	flash      string
	flashError bool
	flashSeq   int

	// Log pane
	showLogs    bool
	logLines    []string
	logViewport viewport.Model
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}
	active := opts.ActiveInterval
	if active <= 0 {
		active = 2 * time.Second
	}
	idle := opts.IdleInterval
	if idle <= 0 {
		idle = monitor.DefaultInterval
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	ti := textinput.New()
	ti.Placeholder = "magnet link or torrent URL"
	ti.Prompt = "Add: "
	ti.CharLimit = 4096

	return Model{
		store:      store,
		ctrl:       opts.Controller,
		keys:       DefaultKeyMap(),
		header:     opts.Header,
		alwaysShow: opts.AlwaysShow,
		webURL:     opts.WebURL,
		active:     active,
		idle:       idle,
		prefsPath:  prefsPath,
		logPath:    opts.LogPath,
		theme:      GetTheme(opts.ThemeName),
		layout:     ParseRowLayout(opts.Layout),
		selectedID: -1,
		input:      ti,
	}
}

type (
	tickMsg       time.Time
	snapshotMsg   state.Snapshot
	clearFlashMsg struct{ seq int }
)

func tickCmd() tea.Cmd {
	return tea.Tick(uiTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg { return snapshotMsg(store.Snapshot()) }
}

// control runs fn against the controller off the update loop.
func (m Model) control(fn func(Controller)) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		fn(ctrl)
		return nil
	}
}

func (m Model) setInterval(d time.Duration) tea.Cmd {
	return m.control(func(c Controller) { c.SetPollInterval(d) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	// The monitor starts at the idle interval; terminals without focus
	// reporting never leave it.
	return tea.Batch(
		tickCmd(),
		fetchSnapshotCmd(m.store),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeLogViewport()
		m.syncSelection()
		return m, nil

	case tea.FocusMsg:
		if m.focused {
			return m, nil
		}
		m.focused = true
		return m, m.setInterval(m.active)

	case tea.BlurMsg:
		if !m.focused {
			return m, nil
		}
		m.focused = false
		return m, m.setInterval(m.idle)

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(), fetchSnapshotCmd(m.store)}
		if m.showLogs {
			cmds = append(cmds, readLogsCmd(m.logPath))
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.applySnapshot(state.Snapshot(msg))
		return m, nil

	case statsMsg:
		m.connError = ""
		m.applySnapshot(m.store.Snapshot())
		return m, nil

	case sessionMsg, listMsg:
		m.applySnapshot(m.store.Snapshot())
		return m, nil

	case connErrorMsg:
		m.connError = msg.message
		m.applySnapshot(m.store.Snapshot())
		return m, nil

	case addedMsg:
		if msg.accepted {
			return m.setFlash("Torrent added", false)
		}
		return m.setFlash("Torrent rejected", true)

	case clearFlashMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
			m.flashError = false
		}
		return m, nil

	case logsMsg:
		m.handleLogs(msg)
		return m, nil
	}

	if m.adding {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return connectingText
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.adding {
		return m.handleAddKey(msg)
	}
	if m.confirmRemove {
		return m.handleConfirmKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.ToggleLayout):
		m.layout = m.layout.Next()
		m.savePrefs()
		m.syncSelection()
		return m, nil

	case key.Matches(msg, m.keys.ToggleLogs):
		m.showLogs = !m.showLogs
		m.resizeLogViewport()
		m.syncSelection()
		if m.showLogs {
			return m, readLogsCmd(m.logPath)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.moveSelection(-len(m.snapshot.Torrents))
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.moveSelection(len(m.snapshot.Torrents))
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		t, ok := m.selectedTorrent()
		if !ok {
			return m, nil
		}
		action := toggleAction(t)
		return m, m.control(func(c Controller) { c.SendAction(action, t.ID) })

	case key.Matches(msg, m.keys.StartAll):
		if !m.hasTorrents() {
			return m, nil
		}
		return m, m.control(func(c Controller) { c.SendAction(monitor.ActionStart) })

	case key.Matches(msg, m.keys.StopAll):
		if !m.hasTorrents() {
			return m, nil
		}
		return m, m.control(func(c Controller) { c.SendAction(monitor.ActionStop) })

	case key.Matches(msg, m.keys.Remove):
		if t, ok := m.selectedTorrent(); ok {
			m.confirmRemove = true
			m.removeID = t.ID
		}
		return m, nil

	case key.Matches(msg, m.keys.Add):
		if !m.online() {
			return m, nil
		}
		m.adding = true
		m.input.Reset()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.AltSpeed):
		if !m.snapshot.HasSession || !m.online() {
			return m, nil
		}
		enabled := !m.snapshot.Session.AltSpeedEnabled
		return m, m.control(func(c Controller) { c.SetAltSpeedEnabled(enabled) })
	}
	return m, nil
}

func (m Model) handleAddKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.adding = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.adding = false
		m.input.Blur()
		filename := strings.TrimSpace(m.input.Value())
		if filename == "" {
			return m, nil
		}
		return m, m.control(func(c Controller) { c.AddTorrent(filename) })
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.confirmRemove = false
		id := m.removeID
		return m, m.control(func(c Controller) { c.SendAction(monitor.ActionRemove, id) })
	case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
		m.confirmRemove = false
	}
	return m, nil
}

func (m Model) setFlash(text string, isError bool) (tea.Model, tea.Cmd) {
	m.flashSeq++
	m.flash = text
	m.flashError = isError
	seq := m.flashSeq
	return m, tea.Tick(flashTimeout, func(time.Time) tea.Msg { return clearFlashMsg{seq: seq} })
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	p := prefs.Prefs{Theme: m.theme.Name, Layout: m.layout.String()}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		log.Printf("save prefs: %v", err)
	}
}

func (m *Model) applySnapshot(snap state.Snapshot) {
	m.snapshot = snap
	if m.confirmRemove {
		if _, ok := snap.Torrent(m.removeID); !ok {
			m.confirmRemove = false
		}
	}
	m.syncSelection()
}

// online reports whether the daemon answered the last poll.
func (m Model) online() bool {
	return m.connError == ""
}

// visibleTorrents hides the list while the daemon is unreachable.
func (m Model) visibleTorrents() []transmission.Torrent {
	if !m.online() {
		return nil
	}
	return m.snapshot.Torrents
}

func (m Model) hasTorrents() bool {
	return len(m.visibleTorrents()) > 0
}

func (m Model) selectedTorrent() (transmission.Torrent, bool) {
	torrents := m.visibleTorrents()
	if m.selected < 0 || m.selected >= len(torrents) {
		return transmission.Torrent{}, false
	}
	return torrents[m.selected], true
}

func (m *Model) moveSelection(delta int) {
	m.selected += delta
	m.selectedID = -1
	m.syncSelection()
}

// syncSelection keeps the cursor on the same torrent across list updates
// and scrolls it into view.
func (m *Model) syncSelection() {
	torrents := m.visibleTorrents()
	if m.selectedID >= 0 {
		for i, t := range torrents {
			if t.ID == m.selectedID {
				m.selected = i
				break
			}
		}
	}
	if m.selected >= len(torrents) {
		m.selected = len(torrents) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	if len(torrents) == 0 {
		m.selectedID = -1
		m.offset = 0
		return
	}
	m.selectedID = torrents[m.selected].ID

	perPage := m.rowsPerPage()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+perPage {
		m.offset = m.selected - perPage + 1
	}
	if maxOffset := len(torrents) - perPage; m.offset > maxOffset {
		m.offset = max(maxOffset, 0)
	}
}

// listHeight is the number of lines left for torrent rows.
func (m Model) listHeight() int {
	h := m.height - 4 // header, info line, prompt line, footer
	if m.showLogs {
		h -= m.logPaneHeight() + 1
	}
	return max(h, 1)
}

func (m Model) rowsPerPage() int {
	return max(m.listHeight()/m.layout.Height(), 1)
}

func (m Model) renderMain() string {
	sections := []string{
		m.renderHeader(),
		m.renderInfoLine(),
		m.renderList(),
		m.renderPromptLine(),
	}
	if m.showLogs {
		sections = append(sections, m.renderLogs())
	}
	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderList() string {
	bg := NewBgStyle(m.theme.Background)
	styles := m.theme.Styles()
	height := m.listHeight()
	torrents := m.visibleTorrents()

	var lines []string
	if len(torrents) == 0 {
		text := ""
		if m.online() && m.snapshot.HasStats {
			text = noTorrentText
		}
		lines = append(lines, bg.FillLine(bg.Spaces(2)+bg.Render(text, styles.FaintText), m.width))
	}
	end := min(m.offset+m.rowsPerPage(), len(torrents))
	for i := m.offset; i < end; i++ {
		row := m.renderRow(torrents[i], i == m.selected, m.width)
		lines = append(lines, strings.Split(row, "\n")...)
	}
	for len(lines) < height {
		lines = append(lines, bg.FillLine("", m.width))
	}
	return strings.Join(lines[:height], "\n")
}

func (m Model) renderPromptLine() string {
	styles := m.theme.Styles().WithBackground(m.theme.Background)
	bg := NewBgStyle(m.theme.Background)
	switch {
	case m.adding:
		return bg.FillLine(bg.Space()+m.input.View(), m.width)
	case m.confirmRemove:
		name := ""
		if t, ok := m.snapshot.Torrent(m.removeID); ok {
			name = t.Name
		}
		return bg.FillLine(bg.Space()+
			bg.Render("Remove", styles.DangerText)+bg.Space()+
			bg.Render(truncate(name, m.width-20), styles.Text)+bg.Space()+
			bg.Render("? (y/n)", styles.MutedText), m.width)
	case m.flash != "":
		style := styles.SuccessText
		if m.flashError {
			style = styles.DangerText
		}
		return bg.FillLine(bg.Space()+bg.Render(m.flash, style), m.width)
	}
	return bg.FillLine("", m.width)
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	bindings := m.keys.ShortHelp()
	if m.hasTorrents() {
		bindings = slices.Insert(bindings, 1, m.keys.StartAll, m.keys.StopAll)
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, bg.Render(h.Key, styles.WarningText)+bg.Space()+bg.Render(h.Desc, styles.MutedText))
	}
	return styles.Footer.Width(m.width).Render(bg.Join(parts, "  "))
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithReportFocus(),
	)
	if opts.Bridge != nil {
		opts.Bridge.Attach(p)
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
