// Package rpctest runs an in-process fake Transmission daemon for tests.
package rpctest

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/five82/transmon/internal/transmission"
)

const rpcPath = "/transmission/rpc"

// Call is one request the fake daemon received.
type Call struct {
	Method    string
	Arguments json.RawMessage
	Token     string
	User      string
}

// Server is a fake daemon. By default it enforces a session token, answers
// every RPC the client uses, and records the requests it saw.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	token      string
	user       string
	password   string
	failStatus int
	override   func(method string) (int, bool)
	stats      transmission.SessionStats
	session    transmission.SessionSettings
	torrents   map[int]transmission.Torrent
	recent     []transmission.Torrent
	removed    []int
	hasRecent  bool
	calls      []Call
	nextID     int
}

// New starts a fake daemon that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		token:    "token-1",
		session:  transmission.SessionSettings{RPCVersion: 17, Version: "4.0.5"},
		torrents: make(map[int]transmission.Torrent),
		nextID:   100,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Connection returns settings that reach this server.
func (s *Server) Connection() transmission.Connection {
	u, _ := url.Parse(s.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return transmission.Connection{Host: host, Port: port, BasePath: "/transmission/"}
}

// SetToken changes the session token the server expects. Empty disables the
// check.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// RequireAuth enables basic auth.
func (s *Server) RequireAuth(user, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.password = user, password
}

// FailWith makes every request answer with status. Zero restores normal
// behaviour.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

// Override lets a test answer a method with a bare status code. Returning
// false falls through to the normal handler.
func (s *Server) Override(fn func(method string) (int, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = fn
}

// SetStats sets the session-stats reply.
func (s *Server) SetStats(stats transmission.SessionStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

// SetSession sets the session-get reply.
func (s *Server) SetSession(settings transmission.SessionSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = settings
}

// Session returns the current session settings, including session-set
// changes.
func (s *Server) Session() transmission.SessionSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// SetTorrents replaces the full torrent list.
func (s *Server) SetTorrents(torrents ...transmission.Torrent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.torrents = make(map[int]transmission.Torrent, len(torrents))
	for _, t := range torrents {
		s.torrents[t.ID] = t
	}
}

// SetRecentlyActive fixes the reply to recently-active requests. Until it is
// called those requests return the full list with no removals.
func (s *Server) SetRecentlyActive(torrents []transmission.Torrent, removed []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append([]transmission.Torrent(nil), torrents...)
	s.removed = append([]int(nil), removed...)
	s.hasRecent = true
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns how many requests used method.
func (s *Server) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != rpcPath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var req struct {
		Method    string          `json:"method"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	user, _, _ := r.BasicAuth()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{
		Method:    req.Method,
		Arguments: req.Arguments,
		Token:     r.Header.Get(transmission.SessionHeader),
		User:      user,
	})

	if s.user != "" {
		u, p, ok := r.BasicAuth()
		if !ok || u != s.user || p != s.password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Transmission"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	if s.token != "" && r.Header.Get(transmission.SessionHeader) != s.token {
		w.Header().Set(transmission.SessionHeader, s.token)
		http.Error(w, "conflict", http.StatusConflict)
		return
	}
	if s.failStatus != 0 {
		http.Error(w, "failure", s.failStatus)
		return
	}
	if s.override != nil {
		if status, ok := s.override(req.Method); ok {
			http.Error(w, http.StatusText(status), status)
			return
		}
	}

	args, result := s.dispatchLocked(req.Method, req.Arguments)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "arguments": args})
}

func (s *Server) dispatchLocked(method string, raw json.RawMessage) (any, string) {
	switch method {
	case "session-stats":
		return s.stats, "success"
	case "session-get":
		return s.session, "success"
	case "session-set":
		var args struct {
			AltSpeedEnabled *bool `json:"alt-speed-enabled"`
		}
		_ = json.Unmarshal(raw, &args)
		if args.AltSpeedEnabled != nil {
			s.session.AltSpeedEnabled = *args.AltSpeedEnabled
		}
		return map[string]any{}, "success"
	case "torrent-get":
		var args struct {
			IDs any `json:"ids"`
		}
		_ = json.Unmarshal(raw, &args)
		if args.IDs == "recently-active" && s.hasRecent {
			return map[string]any{"torrents": nonNil(s.recent), "removed": nonNilInts(s.removed)}, "success"
		}
		reply := map[string]any{"torrents": s.sortedLocked()}
		if args.IDs == "recently-active" {
			reply["removed"] = []int{}
		}
		return reply, "success"
	case "torrent-start", "torrent-stop":
		return map[string]any{}, "success"
	case "torrent-remove":
		var args struct {
			IDs []int `json:"ids"`
		}
		_ = json.Unmarshal(raw, &args)
		for _, id := range args.IDs {
			delete(s.torrents, id)
		}
		return map[string]any{}, "success"
	case "torrent-add":
		var args struct {
			Filename string `json:"filename"`
		}
		_ = json.Unmarshal(raw, &args)
		switch {
		case strings.HasPrefix(args.Filename, "magnet:"), strings.HasSuffix(args.Filename, ".torrent"):
			s.nextID++
			t := transmission.Torrent{ID: s.nextID, Name: args.Filename}
			s.torrents[t.ID] = t
			return map[string]any{"torrent-added": map[string]any{"id": t.ID, "name": t.Name, "hashString": "abc"}}, "success"
		case strings.HasPrefix(args.Filename, "dup:"):
			return map[string]any{"torrent-duplicate": map[string]any{"id": 1, "name": "dup"}}, "success"
		default:
			return map[string]any{}, "success"
		}
	default:
		return nil, "method name not recognized"
	}
}

func (s *Server) sortedLocked() []transmission.Torrent {
	out := make([]transmission.Torrent, 0, len(s.torrents))
	for _, t := range s.torrents {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func nonNil(ts []transmission.Torrent) []transmission.Torrent {
	if ts == nil {
		return []transmission.Torrent{}
	}
	return ts
}

func nonNilInts(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
