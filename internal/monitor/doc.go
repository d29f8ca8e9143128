// Package monitor schedules the recurring Transmission polls and fans the
// results out to an Observer.
//
// # Channels
//
// Three channels poll independently on a shared interval:
//
//	stats    session-stats   → Store.ApplyStats   → OnStatsUpdated
//	session  session-get     → Store.ApplySession → OnSessionUpdated
//	list     torrent-get     → Store.ApplyList    → OnListUpdated(removed)
//
// The first list request after start or reconfiguration asks for every
// torrent. Later requests ask for "recently-active" torrents only and the
// store merges them by id.
//
// # Scheduling
//
// A channel has at most one request in flight. Its next timer is armed only
// when the previous reply has been processed, so slow daemons stretch the
// cadence instead of stacking requests. SetPollInterval cancels every timer
// and polls each idle channel at once; a busy channel picks up the new
// interval when its reply arrives.
//
// Configure and SetCredentials bump a connection generation. Replies that
// belong to an older generation are discarded and the channel is polled
// again immediately.
//
// # Errors
//
// Every failed poll is reported once through OnConnectionError and the
// channel keeps its cadence. Protocol failures are shown as connection
// errors with the detail logged. An authentication failure parks the channel
// until the connection or credentials change. The session token handshake is
// handled by the client and never surfaces here.
//
// One-shot commands (SendAction, AddTorrent, SetAltSpeedEnabled) run in
// their own goroutine and only log failures.
//
// # Usage Example
//
//	client, _ := transmission.NewClient(conn, transmission.Options{})
//	mon := monitor.New(client, &state.Store{}, monitor.LogObserver{}, monitor.Options{
//		Interval: 10 * time.Second,
//	})
//	go mon.Run(ctx)
//	mon.SendAction(monitor.ActionStop) // pause everything
package monitor
