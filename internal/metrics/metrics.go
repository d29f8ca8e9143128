package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RPCRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transmon",
		Name:      "rpc_requests_total",
		Help:      "Total RPC requests sent to the daemon by method and HTTP status.",
	}, []string{"method", "status"})

	RPCRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "transmon",
		Name:      "rpc_request_duration_seconds",
		Help:      "RPC round-trip duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	SessionTokenRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "transmon",
		Name:      "session_token_refreshes_total",
		Help:      "Total session tokens received through 409 challenges.",
	})

	PollFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transmon",
		Name:      "poll_failures_total",
		Help:      "Total failed polls by channel and error kind.",
	}, []string{"channel", "kind"})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "transmon",
		Name:      "download_speed_bytes",
		Help:      "Daemon aggregate download speed in bytes per second.",
	})

	UploadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "transmon",
		Name:      "upload_speed_bytes",
		Help:      "Daemon aggregate upload speed in bytes per second.",
	})

	TorrentCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "transmon",
		Name:      "torrents",
		Help:      "Number of torrents reported by session-stats.",
	})

	TorrentsByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "transmon",
		Name:      "torrents_by_status",
		Help:      "Number of torrents in the local snapshot by decoded status.",
	}, []string{"status"})

	AltSpeedEnabled = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "transmon",
		Name:      "alt_speed_enabled",
		Help:      "1 when the daemon's alternative speed limits are on.",
	})

	PollIntervalSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "transmon",
		Name:      "poll_interval_seconds",
		Help:      "Current poll interval shared by every channel.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RPCRequestsTotal,
		RPCRequestDuration,
		SessionTokenRefreshes,
		PollFailuresTotal,
		DownloadSpeedBytes,
		UploadSpeedBytes,
		TorrentCount,
		TorrentsByStatus,
		AltSpeedEnabled,
		PollIntervalSeconds,
	)
}

// Handler serves the collectors registered on reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
