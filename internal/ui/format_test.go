package ui

import (
	"testing"

	"github.com/five82/transmon/internal/transmission"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{999, "999 B"},
		{1000, "1 KB"},
		{1500, "2 KB"},
		{999999, "1000 KB"},
		{1234567, "1.2 MB"},
		{1e9, "1.00 GB"},
		{2.5e12, "2.500 TB"},
		{1e21, "1000.00000 EB"},
	}
	for _, tt := range tests {
		if got := HumanSize(tt.in); got != tt.want {
			t.Fatalf("HumanSize(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHumanRate(t *testing.T) {
	if got := HumanRate(20000); got != "20 KB/s" {
		t.Fatalf("HumanRate = %q", got)
	}
}

func TestStatusText(t *testing.T) {
	all := HeaderOptions{Torrents: true, Icons: true, Numeric: true}
	tests := []struct {
		name  string
		stats transmission.SessionStats
		opts  HeaderOptions
		want  string
	}{
		{"everything", transmission.SessionStats{TorrentCount: 3, DownloadSpeed: 20000, UploadSpeed: 5000}, all, " 3 ↓ 20 KB/s ↑ 5 KB/s"},
		{"thresholds are exclusive", transmission.SessionStats{DownloadSpeed: 10000, UploadSpeed: 2000}, all, ""},
		{"icons only", transmission.SessionStats{TorrentCount: 2, DownloadSpeed: 50000}, HeaderOptions{Torrents: true, Icons: true}, " 2 ↓"},
		{"numeric without count", transmission.SessionStats{TorrentCount: 5, UploadSpeed: 3000}, HeaderOptions{Numeric: true}, "  3 KB/s"},
		{"zero torrents hidden", transmission.SessionStats{}, all, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusText(tt.stats, tt.opts); got != tt.want {
				t.Fatalf("StatusText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInfoText(t *testing.T) {
	if got := InfoText(transmission.SessionStats{}); got != "No torrent" {
		t.Fatalf("InfoText(empty) = %q", got)
	}
	got := InfoText(transmission.SessionStats{TorrentCount: 1, DownloadSpeed: 1500000})
	if got != "↓ 1.5 MB/s / ↑ 0 B/s" {
		t.Fatalf("InfoText = %q", got)
	}
}

func TestDescribeTorrent(t *testing.T) {
	tests := []struct {
		name      string
		torrent   transmission.Torrent
		wantSeeds string
		wantSize  string
		wantError bool
	}{
		{
			name: "stopped and finished",
			torrent: transmission.Torrent{Status: transmission.StatusStopped, IsFinished: true,
				SizeWhenDone: 2e9, UploadedEver: 3e9, UploadRatio: 1.5, PercentDone: 1},
			wantSeeds: "Seeding complete",
			wantSize:  "2.00 GB, uploaded 3.00 GB (Ratio 1.5)",
		},
		{
			name:      "paused midway",
			torrent:   transmission.Torrent{Status: transmission.StatusCheckWait, SizeWhenDone: 1e9, PercentDone: 0.25},
			wantSeeds: "Paused",
			wantSize:  "250.0 MB of 1.00 GB (25.0%)",
		},
		{
			name: "downloading",
			torrent: transmission.Torrent{Status: transmission.StatusDownload, PeersSendingToUs: 3, PeersConnected: 10,
				RateDownload: 2000000, RateUpload: 500, SizeWhenDone: 1e9, PercentDone: 0.5},
			wantSeeds: "Downloading from 3 of 10 peers - ↓ 2.0 MB/s ↑ 500 B/s",
			wantSize:  "500.0 MB of 1.00 GB (50.0%)",
		},
		{
			name: "seeding",
			torrent: transmission.Torrent{Status: transmission.StatusSeedWait, PeersGettingFromUs: 2, PeersConnected: 5,
				RateUpload: 12000, SizeWhenDone: 1e6, UploadedEver: 5e5, UploadRatio: 0.5, PercentDone: 1},
			wantSeeds: "Seeding to 2 of 5 peers - ↑ 12 KB/s",
			wantSize:  "1.0 MB, uploaded 500 KB (Ratio 0.5)",
		},
		{
			name: "error replaces peers",
			torrent: transmission.Torrent{Status: transmission.StatusDownload, Error: transmission.ErrorTrackerError,
				ErrorString: "Tracker gave HTTP 404", SizeWhenDone: 1000, PercentDone: 0},
			wantSeeds: "Tracker gave HTTP 404",
			wantSize:  "0 B of 1 KB (0.0%)",
			wantError: true,
		},
		{
			name: "error code without message",
			torrent: transmission.Torrent{Status: transmission.StatusStopped, Error: transmission.ErrorLocalError,
				SizeWhenDone: 1000, PercentDone: 1},
			wantSeeds: "Paused",
			wantSize:  "1 KB of 1 KB (100.0%)",
		},
		{
			name:    "unknown status",
			torrent: transmission.Torrent{Status: transmission.StatusUnknown},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DescribeTorrent(tt.torrent)
			if got.Seeds != tt.wantSeeds {
				t.Fatalf("Seeds = %q, want %q", got.Seeds, tt.wantSeeds)
			}
			if got.Size != tt.wantSize {
				t.Fatalf("Size = %q, want %q", got.Size, tt.wantSize)
			}
			if got.Error != tt.wantError {
				t.Fatalf("Error = %v, want %v", got.Error, tt.wantError)
			}
		})
	}
}

func TestUploadedFraction(t *testing.T) {
	tests := []struct {
		ratio float64
		want  float64
	}{
		{-1, 0},
		{0, 0},
		{0.4, 0.4},
		{3, 1},
	}
	for _, tt := range tests {
		if got := UploadedFraction(transmission.Torrent{UploadRatio: tt.ratio}); got != tt.want {
			t.Fatalf("UploadedFraction(%v) = %v, want %v", tt.ratio, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("abc", 0); got != "" {
		t.Fatalf("truncate zero = %q", got)
	}
}
