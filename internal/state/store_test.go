package state

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/five82/transmon/internal/transmission"
)

func ids(snap Snapshot) []int {
	out := make([]int, 0, len(snap.Torrents))
	for _, t := range snap.Torrents {
		out = append(out, t.ID)
	}
	return out
}

func TestStore_ListThenRemoved(t *testing.T) {
	var s Store

	s.ApplyList(transmission.TorrentList{
		Torrents: []transmission.Torrent{{ID: 1, RawStatus: 4, PercentDone: 0.5}},
	})
	snap := s.Snapshot()
	tor, ok := snap.Torrent(1)
	if !ok {
		t.Fatalf("snapshot missing id 1: %#v", snap.Torrents)
	}
	if tor.Status != transmission.StatusDownload || tor.PercentDone != 0.5 {
		t.Fatalf("torrent 1 = %v %.2f, want downloading 0.50", tor.Status, tor.PercentDone)
	}

	dropped := s.ApplyList(transmission.TorrentList{Removed: []int{1}, Partial: true})
	if !reflect.DeepEqual(dropped, []int{1}) {
		t.Fatalf("dropped = %v, want [1]", dropped)
	}
	if _, ok := s.Snapshot().Torrent(1); ok {
		t.Fatalf("id 1 still present after removal")
	}
}

func TestStore_PartialListKeepsUnmentionedTorrents(t *testing.T) {
	var s Store
	s.ApplyList(transmission.TorrentList{Torrents: []transmission.Torrent{
		{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"},
	}})

	s.ApplyList(transmission.TorrentList{
		Torrents: []transmission.Torrent{{ID: 2, Name: "b2", RateDownload: 10}},
		Removed:  []int{3, 99},
		Partial:  true,
	})

	snap := s.Snapshot()
	if got := ids(snap); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("ids = %v, want [1 2]", got)
	}
	tor, _ := snap.Torrent(2)
	if tor.Name != "b2" || tor.RateDownload != 10 {
		t.Fatalf("torrent 2 = %#v, want updated in place", tor)
	}
}

func TestStore_FullListDropsMissingTorrents(t *testing.T) {
	var s Store
	s.ApplyList(transmission.TorrentList{Torrents: []transmission.Torrent{
		{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"},
	}})

	dropped := s.ApplyList(transmission.TorrentList{Torrents: []transmission.Torrent{{ID: 2, Name: "b"}}})
	if !reflect.DeepEqual(dropped, []int{1, 3}) {
		t.Fatalf("dropped = %v, want [1 3]", dropped)
	}
	if got := ids(s.Snapshot()); !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("ids = %v, want [2]", got)
	}

	dropped = s.ApplyList(transmission.TorrentList{Partial: true})
	if len(dropped) != 0 || len(s.Snapshot().Torrents) != 1 {
		t.Fatalf("empty partial list dropped %v", dropped)
	}
}

func TestStore_MergeMatchesSetAlgebra(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var s Store
	model := map[int]string{}

	for round := 0; round < 200; round++ {
		list := transmission.TorrentList{Partial: rng.Intn(4) != 0}
		for i := 0; i < rng.Intn(4); i++ {
			list.Removed = append(list.Removed, rng.Intn(20))
		}
		for i := 0; i < rng.Intn(5); i++ {
			id := rng.Intn(20)
			name := time.Duration(rng.Int63()).String()
			list.Torrents = append(list.Torrents, transmission.Torrent{ID: id, Name: name})
		}

		for _, id := range list.Removed {
			delete(model, id)
		}
		if !list.Partial {
			model = map[int]string{}
		}
		for _, tor := range list.Torrents {
			model[tor.ID] = tor.Name
		}
		s.ApplyList(list)

		snap := s.Snapshot()
		if len(snap.Torrents) != len(model) {
			t.Fatalf("round %d: len = %d, want %d", round, len(snap.Torrents), len(model))
		}
		for _, tor := range snap.Torrents {
			if model[tor.ID] != tor.Name {
				t.Fatalf("round %d: id %d name %q, want %q", round, tor.ID, tor.Name, model[tor.ID])
			}
		}
	}
}

func TestStore_RepeatedListIsIdempotent(t *testing.T) {
	var s Store
	list := transmission.TorrentList{Torrents: []transmission.Torrent{
		{ID: 5, Name: "x", RawStatus: 6}, {ID: 2, Name: "y", RawStatus: 0},
	}}
	s.ApplyList(list)
	first := s.Snapshot()
	for i := 0; i < 5; i++ {
		s.ApplyList(list)
	}
	second := s.Snapshot()
	if !reflect.DeepEqual(first.Torrents, second.Torrents) {
		t.Fatalf("snapshot drifted: %#v vs %#v", first.Torrents, second.Torrents)
	}
	if got := ids(second); !reflect.DeepEqual(got, []int{2, 5}) {
		t.Fatalf("ids = %v, want sorted [2 5]", got)
	}
}

func TestStore_StatusFollowsRPCVersion(t *testing.T) {
	var s Store
	s.ApplyList(transmission.TorrentList{Torrents: []transmission.Torrent{{ID: 1, RawStatus: 8}}})

	tor, _ := s.Snapshot().Torrent(1)
	if tor.Status != transmission.StatusUnknown {
		t.Fatalf("raw 8 with current mapping = %v, want unknown", tor.Status)
	}

	s.ApplySession(transmission.SessionSettings{RPCVersion: 13})
	tor, _ = s.Snapshot().Torrent(1)
	if tor.Status != transmission.StatusSeed {
		t.Fatalf("raw 8 with legacy mapping = %v, want seeding", tor.Status)
	}
	if !s.Mapping().Legacy() {
		t.Fatalf("Mapping() should be legacy for rpc-version 13")
	}
}

func TestStore_StatsAndSessionReplacedWholesale(t *testing.T) {
	var s Store
	s.ApplyStats(transmission.SessionStats{TorrentCount: 4, DownloadSpeed: 100, UploadSpeed: 50})
	s.ApplyStats(transmission.SessionStats{TorrentCount: 1})
	snap := s.Snapshot()
	if !snap.HasStats || snap.Stats != (transmission.SessionStats{TorrentCount: 1}) {
		t.Fatalf("stats = %#v, want replaced", snap.Stats)
	}

	s.ApplySession(transmission.SessionSettings{AltSpeedEnabled: true, RPCVersion: 17})
	s.ApplySession(transmission.SessionSettings{RPCVersion: 16})
	snap = s.Snapshot()
	if snap.Session.AltSpeedEnabled || snap.Session.RPCVersion != 16 {
		t.Fatalf("session = %#v, want replaced", snap.Session)
	}
}

func TestStore_SnapshotIsIndependent(t *testing.T) {
	var s Store
	s.ApplyList(transmission.TorrentList{Torrents: []transmission.Torrent{{ID: 1, Name: "orig"}}})

	snap := s.Snapshot()
	snap.Torrents[0].Name = "changed"
	if tor, _ := s.Snapshot().Torrent(1); tor.Name != "orig" {
		t.Fatalf("Snapshot should copy torrents; got %q", tor.Name)
	}
}

func TestStore_ErrorKeepsPreviousData(t *testing.T) {
	var s Store
	s.ApplyStats(transmission.SessionStats{TorrentCount: 2})
	s.ApplyList(transmission.TorrentList{Torrents: []transmission.Torrent{{ID: 1}}})

	before := time.Now()
	origErr := errors.New("boom")
	s.RecordError(origErr)

	snap := s.Snapshot()
	if snap.Stats.TorrentCount != 2 || len(snap.Torrents) != 1 {
		t.Fatalf("data changed on error: %#v", snap)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}
	if snap.LastError == nil || snap.LastError.Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.LastError)
	}
	if snap.LastError != origErr {
		t.Fatalf("LastError = %#v, want the recorded error value", snap.LastError)
	}
	if snap.Connected() {
		t.Fatalf("Connected() = true after error")
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store

	if snap := s.Snapshot(); snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("fresh store: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.RecordError(errors.New("fail 1"))
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 1 || snap.IsOffline() {
		t.Fatalf("after 1 failure: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.RecordError(errors.New("fail 2"))
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 2 || !snap.IsOffline() {
		t.Fatalf("after 2 failures: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.RecordError(nil)
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 2 {
		t.Fatalf("RecordError(nil) changed failures to %d", snap.ConsecutiveFailures)
	}

	s.ApplyStats(transmission.SessionStats{})
	snap := s.Snapshot()
	if snap.ConsecutiveFailures != 0 || snap.IsOffline() || !snap.Connected() {
		t.Fatalf("after success: failures=%d offline=%v connected=%v", snap.ConsecutiveFailures, snap.IsOffline(), snap.Connected())
	}
}

func TestStore_ResetTorrents(t *testing.T) {
	var s Store
	s.ApplyStats(transmission.SessionStats{TorrentCount: 1})
	s.ApplyList(transmission.TorrentList{Torrents: []transmission.Torrent{{ID: 1}}})
	s.ResetTorrents()
	snap := s.Snapshot()
	if len(snap.Torrents) != 0 || snap.HasStats || s.Len() != 0 {
		t.Fatalf("after reset: %#v", snap)
	}
}
