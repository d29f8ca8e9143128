package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/five82/transmon/internal/transmission"
	"github.com/five82/transmon/internal/transmission/rpctest"
)

// execute runs the CLI against srv with an isolated home directory.
func execute(t *testing.T, srv *rpctest.Server, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("TRANSMON_USER", "")
	t.Setenv("TRANSMON_PASSWORD", "")

	conn := srv.Connection()
	full := []string{
		"--config", filepath.Join(dir, "missing.toml"),
		"--host", conn.Host,
		"--port", strconv.Itoa(conn.Port),
		"--rpc-url", conn.BasePath,
	}
	full = append(full, args...)

	cmd := newRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(full)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func lastArgs(t *testing.T, srv *rpctest.Server, method string) map[string]any {
	t.Helper()
	calls := srv.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method != method {
			continue
		}
		var args map[string]any
		if len(calls[i].Arguments) > 0 {
			if err := json.Unmarshal(calls[i].Arguments, &args); err != nil {
				t.Fatalf("decode %s arguments: %v", method, err)
			}
		}
		return args
	}
	t.Fatalf("no %s call recorded", method)
	return nil
}

func TestStatsCommand(t *testing.T) {
	srv := rpctest.New(t)
	srv.SetStats(transmission.SessionStats{TorrentCount: 3, ActiveTorrentCount: 2, PausedTorrentCount: 1, DownloadSpeed: 1500, UploadSpeed: 0})

	out, err := execute(t, srv, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Transmission 4.0.5 (rpc-version 17)", "Torrents: 3 (2 active, 1 paused)", "↓ 2 KB/s / ↑ 0 B/s", "Alt speed: off"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestListCommand(t *testing.T) {
	srv := rpctest.New(t)
	srv.SetTorrents(
		transmission.Torrent{ID: 2, Name: "beta", RawStatus: 4, PercentDone: 0.5},
		transmission.Torrent{ID: 1, Name: "alpha", RawStatus: 0},
	)

	out, err := execute(t, srv, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"NAME", "alpha", "beta", "downloading", "stopped", "50.0%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "alpha") > strings.Index(out, "beta") {
		t.Fatalf("torrents not sorted by id:\n%s", out)
	}
}

func TestListCommand_Empty(t *testing.T) {
	srv := rpctest.New(t)
	out, err := execute(t, srv, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.TrimSpace(out) != "No torrent" {
		t.Fatalf("output = %q", out)
	}
}

func TestAddCommand(t *testing.T) {
	srv := rpctest.New(t)
	out, err := execute(t, srv, "add", "magnet:?xt=urn:btih:abc")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "added magnet:?xt=urn:btih:abc (id 101)") {
		t.Fatalf("output = %q", out)
	}
}

func TestAddCommand_ReportsRejected(t *testing.T) {
	srv := rpctest.New(t)
	out, err := execute(t, srv, "add", "dup:one", "garbage")
	if err == nil || !strings.Contains(err.Error(), "2 of 2") {
		t.Fatalf("add error = %v", err)
	}
	if !strings.Contains(out, "duplicate dup") || !strings.Contains(out, "rejected garbage") {
		t.Fatalf("output = %q", out)
	}
}

func TestStartCommand_AllWhenNoIDs(t *testing.T) {
	srv := rpctest.New(t)
	if _, err := execute(t, srv, "start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, ok := lastArgs(t, srv, "torrent-start")["ids"]; ok {
		t.Fatalf("start without ids sent an ids argument")
	}
}

func TestStopCommand_WithIDs(t *testing.T) {
	srv := rpctest.New(t)
	if _, err := execute(t, srv, "stop", "3", "7"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	ids, _ := lastArgs(t, srv, "torrent-stop")["ids"].([]any)
	if len(ids) != 2 || ids[0] != float64(3) || ids[1] != float64(7) {
		t.Fatalf("ids = %v", ids)
	}
}

func TestRemoveCommand(t *testing.T) {
	srv := rpctest.New(t)
	srv.SetTorrents(transmission.Torrent{ID: 5, Name: "five"})
	if _, err := execute(t, srv, "remove", "--delete-data", "5"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	args := lastArgs(t, srv, "torrent-remove")
	if args["delete-local-data"] != true {
		t.Fatalf("delete-local-data = %v", args["delete-local-data"])
	}
}

func TestRemoveCommand_RequiresIDs(t *testing.T) {
	srv := rpctest.New(t)
	if _, err := execute(t, srv, "remove"); err == nil {
		t.Fatalf("remove without ids succeeded")
	}
	if n := srv.Count("torrent-remove"); n != 0 {
		t.Fatalf("torrent-remove calls = %d", n)
	}
}

func TestAltSpeedCommand(t *testing.T) {
	srv := rpctest.New(t)
	out, err := execute(t, srv, "alt-speed", "on")
	if err != nil {
		t.Fatalf("alt-speed: %v", err)
	}
	if !strings.Contains(out, "Alt speed: on") {
		t.Fatalf("output = %q", out)
	}
	if !srv.Session().AltSpeedEnabled {
		t.Fatalf("daemon alt speed not enabled")
	}

	if _, err := execute(t, srv, "alt-speed", "maybe"); err == nil {
		t.Fatalf("alt-speed accepted an invalid argument")
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	srv := rpctest.New(t)
	if _, err := execute(t, srv, "--port", "0", "stats"); err == nil {
		t.Fatalf("port 0 accepted")
	}
	if n := srv.Count("session-stats"); n != 0 {
		t.Fatalf("session-stats calls = %d", n)
	}
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		args    []string
		want    []int
		wantErr bool
	}{
		{args: nil, want: []int{}},
		{args: []string{"1", " 42 "}, want: []int{1, 42}},
		{args: []string{"0"}, wantErr: true},
		{args: []string{"abc"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseIDs(tt.args)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseIDs(%v) succeeded", tt.args)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseIDs(%v): %v", tt.args, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("parseIDs(%v) = %v, want %v", tt.args, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("parseIDs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		}
	}
}
