package state

import (
	"sort"
	"sync"
	"time"

	"github.com/five82/transmon/internal/transmission"
)

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Stats               transmission.SessionStats
	HasStats            bool
	Session             transmission.SessionSettings
	HasSession          bool
	Torrents            []transmission.Torrent // sorted by id, Status decoded
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the daemon has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Connected reports whether the latest poll succeeded.
func (s Snapshot) Connected() bool {
	return s.LastError == nil && (s.HasStats || s.HasSession)
}

// Torrent looks up a torrent by id.
func (s Snapshot) Torrent(id int) (transmission.Torrent, bool) {
	i := sort.Search(len(s.Torrents), func(i int) bool { return s.Torrents[i].ID >= id })
	if i < len(s.Torrents) && s.Torrents[i].ID == id {
		return s.Torrents[i], true
	}
	return transmission.Torrent{}, false
}

// Store holds the merged daemon state. The zero value is ready to use.
type Store struct {
	mu         sync.RWMutex
	stats      transmission.SessionStats
	hasStats   bool
	session    transmission.SessionSettings
	hasSession bool
	torrents   map[int]transmission.Torrent
	updated    time.Time
	lastErr    error
	failures   int
}

// ApplyStats replaces the session statistics.
func (s *Store) ApplyStats(stats transmission.SessionStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	s.hasStats = true
	s.succeededLocked()
}

// ApplySession replaces the session settings. The rpc-version it carries
// decides how torrent status codes are read from now on.
func (s *Store) ApplySession(settings transmission.SessionSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = settings
	s.hasSession = true
	s.succeededLocked()
}

// ApplyList merges a torrent-get result. Ids in Removed are dropped first,
// then every returned torrent is inserted or overwritten by id. Torrents
// missing from a partial list are kept; a full list is authoritative and
// drops them. The ids actually dropped are returned in ascending order.
func (s *Store) ApplyList(list transmission.TorrentList) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torrents == nil {
		s.torrents = make(map[int]transmission.Torrent, len(list.Torrents))
	}

	var dropped []int
	for _, id := range list.Removed {
		if _, ok := s.torrents[id]; ok {
			delete(s.torrents, id)
			dropped = append(dropped, id)
		}
	}
	if !list.Partial {
		present := make(map[int]struct{}, len(list.Torrents))
		for _, t := range list.Torrents {
			present[t.ID] = struct{}{}
		}
		for id := range s.torrents {
			if _, ok := present[id]; !ok {
				delete(s.torrents, id)
				dropped = append(dropped, id)
			}
		}
	}
	sort.Ints(dropped)
	for _, t := range list.Torrents {
		s.torrents[t.ID] = t
	}
	s.succeededLocked()
	return dropped
}

// ResetTorrents forgets every torrent, used when the daemon changes.
func (s *Store) ResetTorrents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.torrents = nil
	s.hasStats = false
	s.hasSession = false
	s.stats = transmission.SessionStats{}
	s.session = transmission.SessionSettings{}
}

// RecordError keeps previous data but records the failure for visibility.
func (s *Store) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.updated = time.Now()
	s.failures++
}

func (s *Store) succeededLocked() {
	s.lastErr = nil
	s.updated = time.Now()
	s.failures = 0
}

// Mapping returns the status mapping for the last known rpc-version.
func (s *Store) Mapping() transmission.StatusMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Mapping()
}

// Len returns the number of torrents held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.torrents)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Stats:               s.stats,
		HasStats:            s.hasStats,
		Session:             s.session,
		HasSession:          s.hasSession,
		LastUpdated:         s.updated,
		LastError:           s.lastErr,
		ConsecutiveFailures: s.failures,
	}
	if len(s.torrents) == 0 {
		return snap
	}
	mapping := s.session.Mapping()
	snap.Torrents = make([]transmission.Torrent, 0, len(s.torrents))
	for _, t := range s.torrents {
		t.Status = mapping.Decode(t.RawStatus)
		snap.Torrents = append(snap.Torrents, t)
	}
	sort.Slice(snap.Torrents, func(i, j int) bool { return snap.Torrents[i].ID < snap.Torrents[j].ID })
	return snap
}
