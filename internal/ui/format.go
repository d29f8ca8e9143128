package ui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/five82/transmon/internal/transmission"
)

const (
	downArrow = "↓"
	upArrow   = "↑"

	// Header speeds are only shown above these rates (bytes/s).
	downloadShowThreshold = 10000
	uploadShowThreshold   = 2000

	noTorrentText  = "No torrent"
	connectingText = "Connecting..."
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// HumanSize formats a byte count with 1000-based units. Bytes and kilobytes
// carry no decimals; each larger unit adds one.
func HumanSize(size float64) string {
	if size < 0 || math.IsNaN(size) {
		size = 0
	}
	i := 0
	for size >= 1000 && i < len(sizeUnits)-1 {
		size /= 1000
		i++
	}
	decimals := i
	if decimals > 0 && size > 0 {
		decimals--
	}
	scale := math.Pow(10, float64(decimals))
	size = math.Round(size*scale) / scale
	return strconv.FormatFloat(size, 'f', decimals, 64) + " " + sizeUnits[i]
}

// HumanRate formats a transfer rate in bytes/s.
func HumanRate(rate int64) string {
	return HumanSize(float64(rate)) + "/s"
}

// HeaderOptions select what the compact status text shows.
type HeaderOptions struct {
	Torrents bool // torrent count
	Icons    bool // speed arrows
	Numeric  bool // speed values
}

// StatusText builds the compact indicator text next to the logo. It is empty
// when nothing is worth showing, otherwise it starts with a space.
func StatusText(stats transmission.SessionStats, opts HeaderOptions) string {
	var b strings.Builder
	if opts.Torrents && stats.TorrentCount > 0 {
		b.WriteString(strconv.Itoa(stats.TorrentCount))
	}
	if stats.DownloadSpeed > downloadShowThreshold {
		if opts.Icons {
			b.WriteString(" " + downArrow)
		}
		if opts.Numeric {
			b.WriteString(" " + HumanRate(stats.DownloadSpeed))
		}
	}
	if stats.UploadSpeed > uploadShowThreshold {
		if opts.Icons {
			b.WriteString(" " + upArrow)
		}
		if opts.Numeric {
			b.WriteString(" " + HumanRate(stats.UploadSpeed))
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return " " + b.String()
}

// InfoText is the session summary line above the torrent list.
func InfoText(stats transmission.SessionStats) string {
	if stats.TorrentCount <= 0 {
		return noTorrentText
	}
	return fmt.Sprintf("%s %s / %s %s",
		downArrow, HumanRate(stats.DownloadSpeed),
		upArrow, HumanRate(stats.UploadSpeed))
}

// TorrentInfo holds the two descriptive lines of a torrent row.
type TorrentInfo struct {
	Seeds string // peers and rates, or the daemon error
	Size  string
	Error bool
}

// DescribeTorrent builds the info lines for t from its decoded status.
func DescribeTorrent(t transmission.Torrent) TorrentInfo {
	current := HumanSize(float64(t.SizeWhenDone) * t.PercentDone)
	total := HumanSize(float64(t.SizeWhenDone))
	percent := strconv.FormatFloat(t.PercentDone*100, 'f', 1, 64) + "%"
	progress := fmt.Sprintf("%s of %s (%s)", current, total, percent)
	uploaded := fmt.Sprintf("%s, uploaded %s (Ratio %s)",
		total, HumanSize(float64(t.UploadedEver)),
		strconv.FormatFloat(t.UploadRatio, 'f', 1, 64))

	var info TorrentInfo
	switch {
	case t.Status.IsIdle():
		if t.IsFinished {
			info.Seeds = "Seeding complete"
			info.Size = uploaded
		} else {
			info.Seeds = "Paused"
			info.Size = progress
		}
	case t.Status.IsDownloading():
		info.Seeds = fmt.Sprintf("Downloading from %d of %d peers - %s %s %s %s",
			t.PeersSendingToUs, t.PeersConnected,
			downArrow, HumanRate(t.RateDownload),
			upArrow, HumanRate(t.RateUpload))
		info.Size = progress
	case t.Status.IsSeeding():
		info.Seeds = fmt.Sprintf("Seeding to %d of %d peers - %s %s",
			t.PeersGettingFromUs, t.PeersConnected,
			upArrow, HumanRate(t.RateUpload))
		info.Size = uploaded
	}

	if t.HasError() {
		info.Seeds = t.ErrorString
		info.Error = true
	}
	return info
}

// UploadedFraction is the upload ratio capped at 1. The daemon reports
// negative ratios when nothing is known yet.
func UploadedFraction(t transmission.Torrent) float64 {
	if t.UploadRatio <= 0 || math.IsNaN(t.UploadRatio) {
		return 0
	}
	return math.Min(t.UploadRatio, 1)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
