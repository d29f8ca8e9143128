package ui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/transmon/internal/transmission"
)

type (
	statsMsg   transmission.SessionStats
	sessionMsg transmission.SessionSettings
	listMsg    struct{ removed []int }
	addedMsg   struct{ accepted bool }

	connErrorMsg struct {
		kind    transmission.ErrorKind
		message string
	}
)

// Bridge forwards monitor events to a running Bubble Tea program. Events
// that arrive before Attach are dropped; the model reads the store on start.
type Bridge struct {
	program atomic.Pointer[tea.Program]
}

// Attach routes later events to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.program.Store(p)
}

func (b *Bridge) send(msg tea.Msg) {
	if p := b.program.Load(); p != nil {
		p.Send(msg)
	}
}

func (b *Bridge) OnStatsUpdated(stats transmission.SessionStats) {
	b.send(statsMsg(stats))
}

func (b *Bridge) OnSessionUpdated(settings transmission.SessionSettings) {
	b.send(sessionMsg(settings))
}

func (b *Bridge) OnListUpdated(removed []int) {
	b.send(listMsg{removed: removed})
}

func (b *Bridge) OnConnectionError(kind transmission.ErrorKind, message string) {
	b.send(connErrorMsg{kind: kind, message: message})
}

func (b *Bridge) OnTorrentAdded(accepted bool) {
	b.send(addedMsg{accepted: accepted})
}
