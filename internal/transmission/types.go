package transmission

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// SessionHeader carries the CSRF token the daemon hands out on a 409.
const SessionHeader = "X-Transmission-Session-Id"

// LegacyStatusRPCVersion is the first rpc-version that reports torrent status
// with the contiguous 0..6 encoding. Older daemons use the sparse bit values.
const LegacyStatusRPCVersion = 14

const (
	DefaultHost     = "localhost"
	DefaultPort     = 9091
	DefaultBasePath = "/transmission/"
)

// Connection describes where the daemon's RPC endpoint lives.
type Connection struct {
	Host     string
	Port     int
	BasePath string
	UseTLS   bool
}

// Validate checks the host and port constraints.
func (c Connection) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host is empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range [1,65535]", c.Port)
	}
	return nil
}

// URL returns the RPC endpoint, scheme://host:port<basePath>rpc.
func (c Connection) URL() (*url.URL, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	base := strings.TrimSpace(c.BasePath)
	if base == "" {
		base = DefaultBasePath
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(strings.TrimSpace(c.Host), strconv.Itoa(c.Port)),
		Path:   base + "rpc",
	}, nil
}

// WebURL returns the daemon's web interface, which sits next to the RPC path.
func (c Connection) WebURL() string {
	u, err := c.URL()
	if err != nil {
		return ""
	}
	u.Path = strings.TrimSuffix(u.Path, "rpc") + "web/"
	return u.String()
}

// Status is the decoded torrent activity state.
type Status int

const (
	StatusStopped Status = iota
	StatusCheckWait
	StatusCheck
	StatusDownloadWait
	StatusDownload
	StatusSeedWait
	StatusSeed
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusCheckWait:
		return "check_wait"
	case StatusCheck:
		return "checking"
	case StatusDownloadWait:
		return "download_wait"
	case StatusDownload:
		return "downloading"
	case StatusSeedWait:
		return "seed_wait"
	case StatusSeed:
		return "seeding"
	default:
		return "unknown"
	}
}

// IsIdle reports stopped or verifying torrents.
func (s Status) IsIdle() bool {
	return s == StatusStopped || s == StatusCheckWait || s == StatusCheck
}

// IsDownloading reports downloading or queued-for-download torrents.
func (s Status) IsDownloading() bool {
	return s == StatusDownload || s == StatusDownloadWait
}

// IsSeeding reports seeding or queued-for-seeding torrents.
func (s Status) IsSeeding() bool {
	return s == StatusSeed || s == StatusSeedWait
}

// StatusMapping translates raw status codes for one protocol generation.
type StatusMapping struct {
	legacy bool
}

var legacyStatusCodes = map[int]Status{
	1:  StatusCheckWait,
	2:  StatusCheck,
	4:  StatusDownload,
	8:  StatusSeed,
	16: StatusStopped,
}

// MappingFor selects the status mapping for a daemon rpc-version. Zero means
// the version is not known yet and selects the current mapping.
func MappingFor(rpcVersion int) StatusMapping {
	return StatusMapping{legacy: rpcVersion > 0 && rpcVersion < LegacyStatusRPCVersion}
}

// Legacy reports whether the sparse pre-14 encoding is active.
func (m StatusMapping) Legacy() bool { return m.legacy }

// Decode maps a raw status code. Codes outside the active encoding decode to
// StatusUnknown.
func (m StatusMapping) Decode(raw int) Status {
	if m.legacy {
		if s, ok := legacyStatusCodes[raw]; ok {
			return s
		}
		return StatusUnknown
	}
	if raw < int(StatusStopped) || raw > int(StatusSeed) {
		return StatusUnknown
	}
	return Status(raw)
}

// Encode is the inverse of Decode. It fails for states the legacy encoding
// cannot express (the wait states).
func (m StatusMapping) Encode(s Status) (int, bool) {
	if !m.legacy {
		if s < StatusStopped || s > StatusSeed {
			return 0, false
		}
		return int(s), true
	}
	for code, status := range legacyStatusCodes {
		if status == s {
			return code, true
		}
	}
	return 0, false
}

// ErrorCode is the daemon's per-torrent error class.
type ErrorCode int

const (
	ErrorNone ErrorCode = iota
	ErrorTrackerWarning
	ErrorTrackerError
	ErrorLocalError
)

func (e ErrorCode) String() string {
	switch e {
	case ErrorNone:
		return "none"
	case ErrorTrackerWarning:
		return "tracker_warning"
	case ErrorTrackerError:
		return "tracker_error"
	case ErrorLocalError:
		return "local_error"
	default:
		return "unknown"
	}
}

// Torrent is one entry of a torrent-get response. RawStatus is kept as
// received; Status is filled by whoever knows the daemon's rpc-version.
type Torrent struct {
	ID                  int       `json:"id"`
	Name                string    `json:"name"`
	RawStatus           int       `json:"status"`
	Status              Status    `json:"-"`
	PercentDone         float64   `json:"percentDone"`
	RateDownload        int64     `json:"rateDownload"`
	RateUpload          int64     `json:"rateUpload"`
	SizeWhenDone        int64     `json:"sizeWhenDone"`
	LeftUntilDone       int64     `json:"leftUntilDone"`
	UploadedEver        int64     `json:"uploadedEver"`
	UploadRatio         float64   `json:"uploadRatio"`
	PeersConnected      int       `json:"peersConnected"`
	PeersSendingToUs    int       `json:"peersSendingToUs"`
	PeersGettingFromUs  int       `json:"peersGettingFromUs"`
	WebseedsSendingToUs int       `json:"webseedsSendingToUs"`
	ETA                 int64     `json:"eta"`
	Error               ErrorCode `json:"error"`
	ErrorString         string    `json:"errorString"`
	IsFinished          bool      `json:"isFinished"`
}

// HasError reports a daemon-side error with a message worth showing.
func (t Torrent) HasError() bool {
	return t.Error != ErrorNone && strings.TrimSpace(t.ErrorString) != ""
}

// torrentFields is the field list requested by every torrent-get.
var torrentFields = []string{
	"error",
	"errorString",
	"eta",
	"id",
	"isFinished",
	"leftUntilDone",
	"name",
	"peersConnected",
	"peersGettingFromUs",
	"peersSendingToUs",
	"percentDone",
	"rateDownload",
	"rateUpload",
	"sizeWhenDone",
	"status",
	"uploadRatio",
	"uploadedEver",
	"webseedsSendingToUs",
}

// TorrentFields returns a copy of the requested torrent-get field list.
func TorrentFields() []string {
	return append([]string(nil), torrentFields...)
}

// TorrentList is the torrent-get payload. Removed is only populated for
// recently-active requests.
type TorrentList struct {
	Torrents []Torrent `json:"torrents"`
	Removed  []int     `json:"removed"`
	Partial  bool      `json:"-"`
}

// SessionStats mirrors session-stats.
type SessionStats struct {
	TorrentCount       int   `json:"torrentCount"`
	ActiveTorrentCount int   `json:"activeTorrentCount"`
	PausedTorrentCount int   `json:"pausedTorrentCount"`
	DownloadSpeed      int64 `json:"downloadSpeed"`
	UploadSpeed        int64 `json:"uploadSpeed"`
}

// SessionSettings mirrors the subset of session-get the monitor uses.
type SessionSettings struct {
	AltSpeedEnabled bool   `json:"alt-speed-enabled"`
	RPCVersion      int    `json:"rpc-version"`
	Version         string `json:"version"`
}

// Mapping returns the status mapping matching the daemon's rpc-version.
func (s SessionSettings) Mapping() StatusMapping {
	return MappingFor(s.RPCVersion)
}

// AddResult reports how the daemon handled torrent-add.
type AddResult struct {
	Accepted   bool
	Duplicate  bool
	ID         int
	Name       string
	HashString string
}

// Request is the JSON-RPC style envelope POSTed to the daemon.
type Request struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
}

// Response is the envelope every reply is wrapped in.
type Response struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

type torrentGetArgs struct {
	Fields []string `json:"fields"`
	IDs    any      `json:"ids,omitempty"`
}

type idsArgs struct {
	IDs []int `json:"ids"`
}

type removeArgs struct {
	IDs             []int `json:"ids"`
	DeleteLocalData bool  `json:"delete-local-data,omitempty"`
}

type addArgs struct {
	Filename string `json:"filename"`
}

type addedTorrent struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	HashString string `json:"hashString"`
}

type addReply struct {
	Added     *addedTorrent `json:"torrent-added"`
	Duplicate *addedTorrent `json:"torrent-duplicate"`
}

type sessionSetArgs struct {
	AltSpeedEnabled bool `json:"alt-speed-enabled"`
}
