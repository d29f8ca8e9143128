package monitor

import (
	"log"

	"github.com/five82/transmon/internal/transmission"
)

// Observer receives monitor events. Calls are serialized, never concurrent.
// Implementations must not call back into the Monitor synchronously.
type Observer interface {
	OnStatsUpdated(stats transmission.SessionStats)
	OnSessionUpdated(settings transmission.SessionSettings)
	OnListUpdated(removed []int)
	OnConnectionError(kind transmission.ErrorKind, message string)
	OnTorrentAdded(accepted bool)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnStatsUpdated(transmission.SessionStats) {}
func (NopObserver) OnSessionUpdated(transmission.SessionSettings) {}
func (NopObserver) OnListUpdated([]int) {}
func (NopObserver) OnConnectionError(transmission.ErrorKind, string) {}
func (NopObserver) OnTorrentAdded(bool) {}

// LogObserver writes a line per event to the standard logger. It backs the
// headless watch mode.
type LogObserver struct {
	// Verbose also logs successful stats and list updates.
	Verbose bool
}

func (o LogObserver) OnStatsUpdated(stats transmission.SessionStats) {
	if o.Verbose {
		log.Printf("stats: %d torrents, %d active, down %d B/s, up %d B/s",
			stats.TorrentCount, stats.ActiveTorrentCount, stats.DownloadSpeed, stats.UploadSpeed)
	}
}

func (o LogObserver) OnSessionUpdated(settings transmission.SessionSettings) {
	if o.Verbose {
		log.Printf("session: transmission %s rpc-version %d alt-speed %v",
			settings.Version, settings.RPCVersion, settings.AltSpeedEnabled)
	}
}

func (o LogObserver) OnListUpdated(removed []int) {
	if o.Verbose || len(removed) > 0 {
		log.Printf("list updated, removed %v", removed)
	}
}

func (LogObserver) OnConnectionError(kind transmission.ErrorKind, message string) {
	log.Printf("%s error: %s", kind, message)
}

func (LogObserver) OnTorrentAdded(accepted bool) {
	if accepted {
		log.Printf("torrent added")
	} else {
		log.Printf("torrent rejected")
	}
}
