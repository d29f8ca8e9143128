// Package ui provides the terminal front end for transmon.
//
// # Architecture Overview
//
// The UI is a single Bubble Tea model. It never talks to the daemon: it reads
// state.Snapshot values from the store the monitor writes to, and sends user
// actions through a Controller (implemented by *monitor.Monitor).
//
// Monitor events reach the model through a Bridge, an Observer that turns
// each callback into a tea.Msg with tea.Program.Send. A one second tick also
// re-reads the store so the view converges even when no event is delivered.
//
// # Package Structure
//
//   - app.go: Model, Update loop, key handling and Run
//   - bridge.go: Observer to tea.Msg adapter
//   - format.go: sizes, rates, header status text and per-torrent info lines
//   - rows.go: detailed and compact torrent rows, progress bars
//   - header.go: indicator bar and session info line
//   - logs.go: optional tail of the log file
//   - theme.go, style_helpers.go: palettes and background-safe rendering
//
// # Polling Cadence
//
// Polling starts at the idle interval. When the terminal reports focus the
// monitor switches to the active interval, and back to idle on blur.
//
// # Key Bindings
//
//   - j/k, g/G: Move selection
//   - s: Start or stop the selected torrent
//   - S/P: Start or stop all torrents
//   - x: Remove the selected torrent (asks first, keeps local data)
//   - a: Add a torrent by URL or magnet link
//   - A: Toggle alternative speed limits
//   - L: Switch between detailed and compact rows
//   - l: Show or hide the log pane
//   - T: Cycle theme
//   - h/?: Help
//   - q or Ctrl+C: Quit
package ui
