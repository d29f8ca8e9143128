package transmission_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/transmon/internal/transmission"
	"github.com/five82/transmon/internal/transmission/rpctest"
)

func newClient(t *testing.T, conn transmission.Connection) *transmission.Client {
	t.Helper()
	c, err := transmission.NewClient(conn, transmission.Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_SessionTokenHandshake(t *testing.T) {
	t.Parallel()

	daemon := rpctest.New(t)
	daemon.SetToken("abc123")
	daemon.SetStats(transmission.SessionStats{TorrentCount: 3, DownloadSpeed: 2048})
	c := newClient(t, daemon.Connection())

	stats, err := c.SessionStats(testContext(t))
	if err != nil {
		t.Fatalf("SessionStats returned error: %v", err)
	}
	if stats.TorrentCount != 3 || stats.DownloadSpeed != 2048 {
		t.Fatalf("stats = %#v, want count=3 down=2048", stats)
	}
	if c.SessionToken() != "abc123" {
		t.Fatalf("SessionToken = %q, want abc123", c.SessionToken())
	}

	calls := daemon.Calls()
	if len(calls) != 2 {
		t.Fatalf("daemon saw %d requests, want 2 (challenge + resend)", len(calls))
	}
	if calls[0].Token != "" || calls[1].Token != "abc123" {
		t.Fatalf("tokens = %q, %q; want empty then abc123", calls[0].Token, calls[1].Token)
	}
	if calls[0].Method != "session-stats" || calls[1].Method != "session-stats" {
		t.Fatalf("methods = %q, %q; want session-stats twice", calls[0].Method, calls[1].Method)
	}

	// Token is reused without another challenge.
	if _, err := c.SessionStats(testContext(t)); err != nil {
		t.Fatalf("second SessionStats returned error: %v", err)
	}
	if got := daemon.Count("session-stats"); got != 3 {
		t.Fatalf("session-stats count = %d, want 3", got)
	}
}

func TestClient_RepeatedConflictResendsOnlyOnce(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		w.Header().Set(transmission.SessionHeader, "rotated-"+string(rune('0'+n)))
		w.WriteHeader(http.StatusConflict)
	}))
	t.Cleanup(server.Close)

	conn := connectionFor(t, server.URL)
	c := newClient(t, conn)

	err := c.Call(testContext(t), "session-get", nil, nil)
	if err == nil {
		t.Fatalf("Call returned nil error, want conflict error")
	}
	if kind := transmission.KindOf(err); kind != transmission.KindConnection {
		t.Fatalf("KindOf = %v, want connection", kind)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("server hits = %d, want 2", got)
	}
	if c.SessionToken() != "rotated-2" {
		t.Fatalf("SessionToken = %q, want newest token rotated-2", c.SessionToken())
	}
}

func TestClient_ConflictWithoutTokenIsProtocolError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	t.Cleanup(server.Close)

	c := newClient(t, connectionFor(t, server.URL))
	err := c.Call(testContext(t), "session-get", nil, nil)
	if kind := transmission.KindOf(err); err == nil || kind != transmission.KindProtocol {
		t.Fatalf("Call error = %v (kind %v), want protocol error", err, kind)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	t.Parallel()

	daemon := rpctest.New(t)
	daemon.RequireAuth("admin", "secret")

	c := newClient(t, daemon.Connection())
	_, err := c.Session(testContext(t))
	if !transmission.IsAuthentication(err) {
		t.Fatalf("Session error = %v, want authentication error", err)
	}
	if msg := transmission.MessageOf(err); msg != transmission.MsgMissingCredentials {
		t.Fatalf("message = %q, want %q", msg, transmission.MsgMissingCredentials)
	}

	c.SetCredentials("admin", "wrong")
	_, err = c.Session(testContext(t))
	if msg := transmission.MessageOf(err); msg != transmission.MsgAuthFailed {
		t.Fatalf("message = %q, want %q", msg, transmission.MsgAuthFailed)
	}

	c.SetCredentials("admin", "secret")
	if _, err := c.Session(testContext(t)); err != nil {
		t.Fatalf("Session with valid credentials returned error: %v", err)
	}
	for _, call := range daemon.Calls()[2:] {
		if call.User != "admin" {
			t.Fatalf("request sent without basic auth user: %#v", call)
		}
	}
}

func TestClient_TorrentsRequestShape(t *testing.T) {
	t.Parallel()

	daemon := rpctest.New(t)
	daemon.SetTorrents(
		transmission.Torrent{ID: 1, Name: "one", RawStatus: 4, PercentDone: 0.5},
		transmission.Torrent{ID: 2, Name: "two", RawStatus: 6},
	)
	daemon.SetRecentlyActive([]transmission.Torrent{{ID: 2, Name: "two", RawStatus: 0}}, []int{7})
	c := newClient(t, daemon.Connection())

	full, err := c.Torrents(testContext(t), false)
	if err != nil {
		t.Fatalf("Torrents(full) returned error: %v", err)
	}
	if full.Partial || len(full.Torrents) != 2 || full.Torrents[0].PercentDone != 0.5 {
		t.Fatalf("full list = %#v, want 2 torrents", full)
	}

	delta, err := c.Torrents(testContext(t), true)
	if err != nil {
		t.Fatalf("Torrents(recent) returned error: %v", err)
	}
	if !delta.Partial || len(delta.Torrents) != 1 || len(delta.Removed) != 1 || delta.Removed[0] != 7 {
		t.Fatalf("delta = %#v, want one torrent and removed=[7]", delta)
	}

	var gets []rpctest.Call
	for _, call := range daemon.Calls() {
		if call.Method == "torrent-get" && call.Token != "" {
			gets = append(gets, call)
		}
	}
	if len(gets) != 2 {
		t.Fatalf("torrent-get calls = %d, want 2", len(gets))
	}
	var first, second struct {
		Fields []string `json:"fields"`
		IDs    any      `json:"ids"`
	}
	if err := json.Unmarshal(gets[0].Arguments, &first); err != nil {
		t.Fatalf("decode first args: %v", err)
	}
	if err := json.Unmarshal(gets[1].Arguments, &second); err != nil {
		t.Fatalf("decode second args: %v", err)
	}
	if first.IDs != nil {
		t.Fatalf("full request ids = %v, want omitted", first.IDs)
	}
	if second.IDs != "recently-active" {
		t.Fatalf("delta request ids = %v, want recently-active", second.IDs)
	}
	if len(first.Fields) != len(transmission.TorrentFields()) {
		t.Fatalf("fields = %v, want %v", first.Fields, transmission.TorrentFields())
	}
}

func TestClient_AddTorrent(t *testing.T) {
	t.Parallel()

	daemon := rpctest.New(t)
	c := newClient(t, daemon.Connection())
	ctx := testContext(t)

	res, err := c.AddTorrent(ctx, "magnet:?xt=urn:btih:abc")
	if err != nil {
		t.Fatalf("AddTorrent returned error: %v", err)
	}
	if !res.Accepted || res.ID == 0 {
		t.Fatalf("AddTorrent = %#v, want accepted with id", res)
	}

	res, err = c.AddTorrent(ctx, "http://example.com/not-a-torrent")
	if err != nil {
		t.Fatalf("AddTorrent returned error: %v", err)
	}
	if res.Accepted {
		t.Fatalf("AddTorrent = %#v, want not accepted", res)
	}

	res, err = c.AddTorrent(ctx, "dup:something")
	if err != nil {
		t.Fatalf("AddTorrent returned error: %v", err)
	}
	if res.Accepted || !res.Duplicate {
		t.Fatalf("AddTorrent = %#v, want duplicate", res)
	}

	if _, err := c.AddTorrent(ctx, "   "); err == nil {
		t.Fatalf("AddTorrent with empty filename returned nil error")
	}
}

func TestClient_ActionArguments(t *testing.T) {
	t.Parallel()

	daemon := rpctest.New(t)
	daemon.SetToken("")
	c := newClient(t, daemon.Connection())
	ctx := testContext(t)

	if err := c.StartTorrents(ctx, 3, 4); err != nil {
		t.Fatalf("StartTorrents returned error: %v", err)
	}
	if err := c.StopTorrents(ctx); err != nil {
		t.Fatalf("StopTorrents returned error: %v", err)
	}
	if err := c.RemoveTorrents(ctx, false); err == nil {
		t.Fatalf("RemoveTorrents without ids returned nil error")
	}
	if err := c.RemoveTorrents(ctx, true, 9); err != nil {
		t.Fatalf("RemoveTorrents returned error: %v", err)
	}
	if err := c.SetAltSpeedEnabled(ctx, true); err != nil {
		t.Fatalf("SetAltSpeedEnabled returned error: %v", err)
	}
	if !daemon.Session().AltSpeedEnabled {
		t.Fatalf("daemon alt speed not enabled")
	}

	calls := daemon.Calls()
	if len(calls) != 4 {
		t.Fatalf("calls = %d, want 4", len(calls))
	}
	if got := string(calls[0].Arguments); got != `{"ids":[3,4]}` {
		t.Fatalf("torrent-start args = %s", got)
	}
	if len(calls[1].Arguments) != 0 {
		t.Fatalf("torrent-stop (all) args = %s, want omitted", calls[1].Arguments)
	}
	if got := string(calls[2].Arguments); got != `{"ids":[9],"delete-local-data":true}` {
		t.Fatalf("torrent-remove args = %s", got)
	}
}

func TestClient_HTTPErrorAndDecodeError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transmission.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.Method {
		case "session-stats":
			_, _ = w.Write([]byte("{not-json"))
		case "session-get":
			_, _ = w.Write([]byte(`{"result":"no permission"}`))
		case "torrent-get":
			_, _ = w.Write([]byte(`{"result":"success"}`))
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	c := newClient(t, connectionFor(t, server.URL))
	ctx := testContext(t)

	if _, err := c.SessionStats(ctx); transmission.KindOf(err) != transmission.KindProtocol {
		t.Fatalf("SessionStats error = %v, want protocol error", err)
	}
	if _, err := c.Session(ctx); err == nil || !strings.Contains(err.Error(), "no permission") {
		t.Fatalf("Session error = %v, want result message", err)
	}
	if _, err := c.Torrents(ctx, false); transmission.KindOf(err) != transmission.KindProtocol {
		t.Fatalf("Torrents error = %v, want protocol error for missing arguments", err)
	}
	err := c.StartTorrents(ctx, 1)
	var rpcErr *transmission.Error
	if !errors.As(err, &rpcErr) || rpcErr.Kind != transmission.KindConnection || rpcErr.StatusCode != 500 {
		t.Fatalf("StartTorrents error = %#v, want connection error with status 500", err)
	}
}

func TestClient_MissingReplyFieldsAreProtocolErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reply   string
		call    func(context.Context, *transmission.Client) error
		missing string
	}{
		{
			name:    "session-stats",
			reply:   `{"torrentCount":1,"activeTorrentCount":1,"pausedTorrentCount":0,"downloadSpeed":5}`,
			call:    func(ctx context.Context, c *transmission.Client) error { _, err := c.SessionStats(ctx); return err },
			missing: "uploadSpeed",
		},
		{
			name:    "session-get",
			reply:   `{"alt-speed-enabled":false,"version":"4.0.5"}`,
			call:    func(ctx context.Context, c *transmission.Client) error { _, err := c.Session(ctx); return err },
			missing: "rpc-version",
		},
		{
			name:    "torrent-get full",
			reply:   `{"unexpected":1}`,
			call:    func(ctx context.Context, c *transmission.Client) error { _, err := c.Torrents(ctx, false); return err },
			missing: "torrents",
		},
		{
			name:    "torrent-get recently-active",
			reply:   `{"torrents":null,"removed":[]}`,
			call:    func(ctx context.Context, c *transmission.Client) error { _, err := c.Torrents(ctx, true); return err },
			missing: "torrents",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"result":"success","arguments":` + tt.reply + `}`))
			}))
			t.Cleanup(server.Close)

			err := tt.call(testContext(t), newClient(t, connectionFor(t, server.URL)))
			if transmission.KindOf(err) != transmission.KindProtocol {
				t.Fatalf("error = %v, want protocol error", err)
			}
			if !strings.Contains(err.Error(), tt.missing) {
				t.Fatalf("error = %v, want mention of %q", err, tt.missing)
			}
		})
	}
}

func TestClient_CompleteRepliesDecode(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transmission.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.Method {
		case "session-get":
			_, _ = w.Write([]byte(`{"result":"success","arguments":{"rpc-version":13,"version":"2.84","extra":true}}`))
		default:
			_, _ = w.Write([]byte(`{"result":"success","arguments":{"torrents":[]}}`))
		}
	}))
	t.Cleanup(server.Close)

	c := newClient(t, connectionFor(t, server.URL))
	ctx := testContext(t)
	settings, err := c.Session(ctx)
	if err != nil || settings.RPCVersion != 13 {
		t.Fatalf("Session = %+v, %v; want rpc-version 13", settings, err)
	}
	list, err := c.Torrents(ctx, false)
	if err != nil || len(list.Torrents) != 0 {
		t.Fatalf("Torrents = %+v, %v; want empty list", list, err)
	}
}

func TestClient_UnreachableHost(t *testing.T) {
	t.Parallel()

	c := newClient(t, transmission.Connection{Host: "127.0.0.1", Port: 1})
	_, err := c.SessionStats(testContext(t))
	if err == nil {
		t.Fatalf("SessionStats returned nil error for closed port")
	}
	if transmission.KindOf(err) != transmission.KindConnection {
		t.Fatalf("KindOf = %v, want connection", transmission.KindOf(err))
	}
	if transmission.MessageOf(err) != transmission.MsgCannotConnect {
		t.Fatalf("MessageOf = %q, want %q", transmission.MessageOf(err), transmission.MsgCannotConnect)
	}
}

func TestClient_ConfigureSwitchesEndpointAndDropsToken(t *testing.T) {
	t.Parallel()

	first := rpctest.New(t)
	second := rpctest.New(t)
	second.SetToken("other")

	c := newClient(t, first.Connection())
	if _, err := c.Session(testContext(t)); err != nil {
		t.Fatalf("Session returned error: %v", err)
	}
	if c.SessionToken() != "token-1" {
		t.Fatalf("SessionToken = %q, want token-1", c.SessionToken())
	}

	if err := c.Configure(second.Connection()); err != nil {
		t.Fatalf("Configure returned error: %v", err)
	}
	if c.SessionToken() != "" {
		t.Fatalf("SessionToken after Configure = %q, want empty", c.SessionToken())
	}
	if _, err := c.Session(testContext(t)); err != nil {
		t.Fatalf("Session after Configure returned error: %v", err)
	}
	if second.Count("session-get") != 2 {
		t.Fatalf("second daemon session-get count = %d, want 2", second.Count("session-get"))
	}

	if err := c.Configure(transmission.Connection{Host: "", Port: 9091}); err == nil {
		t.Fatalf("Configure with empty host returned nil error")
	}
	if !strings.Contains(c.Endpoint(), second.Connection().Host) {
		t.Fatalf("Endpoint = %q, want unchanged after failed Configure", c.Endpoint())
	}
}

func connectionFor(t *testing.T, rawURL string) transmission.Connection {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	// httptest handlers ignore the path, so any base path reaches them.
	return transmission.Connection{Host: u.Hostname(), Port: port, BasePath: "/transmission/"}
}
