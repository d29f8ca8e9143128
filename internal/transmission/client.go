package transmission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/five82/transmon/internal/metrics"
)

// RPC is the daemon surface the monitor and CLI depend on. It is implemented
// by *Client.
type RPC interface {
	SessionStats(ctx context.Context) (SessionStats, error)
	Session(ctx context.Context) (SessionSettings, error)
	Torrents(ctx context.Context, recentlyActive bool) (TorrentList, error)
	StartTorrents(ctx context.Context, ids ...int) error
	StopTorrents(ctx context.Context, ids ...int) error
	RemoveTorrents(ctx context.Context, deleteData bool, ids ...int) error
	AddTorrent(ctx context.Context, filename string) (AddResult, error)
	SetAltSpeedEnabled(ctx context.Context, enabled bool) error
}

var _ RPC = (*Client)(nil)

const (
	defaultUserAgent = "transmon/0.1"
	requestTimeout   = 10 * time.Second
	maxResponseBytes = 32 << 20

	defaultActionRate  = rate.Limit(5)
	defaultActionBurst = 5
)

// Options tune a Client. The zero value is usable.
type Options struct {
	Timeout     time.Duration
	Transport   http.RoundTripper
	UserAgent   string
	ActionRate  rate.Limit
	ActionBurst int
}

// Client talks to the Transmission RPC endpoint.
type Client struct {
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter

	mu       sync.RWMutex
	conn     Connection
	endpoint *url.URL
	user     string
	password string
	token    string
}

// NewClient builds a Client for conn.
func NewClient(conn Connection, opts Options) (*Client, error) {
	endpoint, err := conn.URL()
	if err != nil {
		return nil, fmt.Errorf("invalid connection: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	limit, burst := opts.ActionRate, opts.ActionBurst
	if limit <= 0 {
		limit = defaultActionRate
	}
	if burst <= 0 {
		burst = defaultActionBurst
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		userAgent: userAgent,
		limiter:   rate.NewLimiter(limit, burst),
		conn:      conn,
		endpoint:  endpoint,
	}, nil
}

// Configure points the client at a new endpoint. The session token belongs to
// the old daemon and is dropped.
func (c *Client) Configure(conn Connection) error {
	endpoint, err := conn.URL()
	if err != nil {
		return fmt.Errorf("invalid connection: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.endpoint = endpoint
	c.token = ""
	return nil
}

// SetCredentials sets the basic auth pair. Empty values disable basic auth.
func (c *Client) SetCredentials(user, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
	c.password = password
}

// Connection returns the active connection settings.
func (c *Client) Connection() Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Endpoint returns the RPC URL requests are sent to.
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint.String()
}

// SessionToken returns the last token issued by the daemon.
func (c *Client) SessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SessionStats fetches aggregate speeds and counts.
func (c *Client) SessionStats(ctx context.Context) (SessionStats, error) {
	var stats SessionStats
	if err := c.Call(ctx, "session-stats", nil, &stats); err != nil {
		return SessionStats{}, err
	}
	return stats, nil
}

// Session fetches the session settings.
func (c *Client) Session(ctx context.Context) (SessionSettings, error) {
	var settings SessionSettings
	if err := c.Call(ctx, "session-get", nil, &settings); err != nil {
		return SessionSettings{}, err
	}
	return settings, nil
}

// Torrents fetches the torrent list. With recentlyActive only torrents that
// changed recently are returned, together with the ids removed since.
func (c *Client) Torrents(ctx context.Context, recentlyActive bool) (TorrentList, error) {
	args := torrentGetArgs{Fields: torrentFields}
	if recentlyActive {
		args.IDs = "recently-active"
	}
	var list TorrentList
	if err := c.Call(ctx, "torrent-get", args, &list); err != nil {
		return TorrentList{}, err
	}
	list.Partial = recentlyActive
	return list, nil
}

// StartTorrents starts the given torrents, or every torrent when ids is empty.
func (c *Client) StartTorrents(ctx context.Context, ids ...int) error {
	return c.action(ctx, "torrent-start", idsOrAll(ids))
}

// StopTorrents stops the given torrents, or every torrent when ids is empty.
func (c *Client) StopTorrents(ctx context.Context, ids ...int) error {
	return c.action(ctx, "torrent-stop", idsOrAll(ids))
}

// RemoveTorrents removes torrents from the daemon. At least one id is
// required.
func (c *Client) RemoveTorrents(ctx context.Context, deleteData bool, ids ...int) error {
	if len(ids) == 0 {
		return fmt.Errorf("torrent-remove: at least one id required")
	}
	return c.action(ctx, "torrent-remove", removeArgs{IDs: ids, DeleteLocalData: deleteData})
}

// AddTorrent hands a URL or magnet link to the daemon.
func (c *Client) AddTorrent(ctx context.Context, filename string) (AddResult, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return AddResult{}, fmt.Errorf("torrent-add: filename is empty")
	}
	if err := c.wait(ctx); err != nil {
		return AddResult{}, err
	}
	var reply addReply
	if err := c.Call(ctx, "torrent-add", addArgs{Filename: filename}, &reply); err != nil {
		return AddResult{}, err
	}
	switch {
	case reply.Added != nil:
		return AddResult{Accepted: true, ID: reply.Added.ID, Name: reply.Added.Name, HashString: reply.Added.HashString}, nil
	case reply.Duplicate != nil:
		return AddResult{Duplicate: true, ID: reply.Duplicate.ID, Name: reply.Duplicate.Name, HashString: reply.Duplicate.HashString}, nil
	default:
		return AddResult{}, nil
	}
}

// SetAltSpeedEnabled toggles the daemon's alternative speed limits.
func (c *Client) SetAltSpeedEnabled(ctx context.Context, enabled bool) error {
	return c.action(ctx, "session-set", sessionSetArgs{AltSpeedEnabled: enabled})
}

func (c *Client) action(ctx context.Context, method string, args any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.Call(ctx, method, args, nil)
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func idsOrAll(ids []int) any {
	if len(ids) == 0 {
		return nil
	}
	return idsArgs{IDs: ids}
}

// Call issues one RPC and decodes the reply's arguments into dest (which may
// be nil). A 409 stores the fresh session token and resends the request
// exactly once.
func (c *Client) Call(ctx context.Context, method string, args any, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	body, err := json.Marshal(Request{Method: method, Arguments: args})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	reply, err := c.post(ctx, method, body)
	if err != nil {
		return err
	}
	if reply.status == http.StatusConflict {
		if err := c.refreshToken(method, reply); err != nil {
			return err
		}
		reply, err = c.post(ctx, method, body)
		if err != nil {
			return err
		}
		if reply.status == http.StatusConflict {
			// Keep the newest token for the next logical request.
			_ = c.refreshToken(method, reply)
			return &Error{Kind: KindConnection, Method: method, StatusCode: reply.status, Message: "session token rejected after refresh"}
		}
	}

	switch reply.status {
	case http.StatusOK:
		return decodeReply(method, reply.body, dest)
	case http.StatusUnauthorized:
		msg := MsgAuthFailed
		if !reply.authSent {
			msg = MsgMissingCredentials
		}
		return &Error{Kind: KindAuthentication, Method: method, StatusCode: reply.status, Message: msg}
	case http.StatusNotFound:
		return &Error{Kind: KindConnection, Method: method, StatusCode: reply.status, Message: fmt.Sprintf("Can't access %s", reply.url)}
	default:
		return &Error{Kind: KindConnection, Method: method, StatusCode: reply.status, Message: fmt.Sprintf("%s (HTTP %d)", MsgCannotConnect, reply.status)}
	}
}

type rawReply struct {
	status   int
	header   http.Header
	body     []byte
	url      string
	authSent bool
}

func (c *Client) post(ctx context.Context, method string, body []byte) (rawReply, error) {
	c.mu.RLock()
	endpoint := c.endpoint.String()
	token := c.token
	user, password := c.user, c.password
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return rawReply{}, &Error{Kind: KindConnection, Method: method, Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set(SessionHeader, token)
	}
	authSent := user != "" && password != ""
	if authSent {
		req.SetBasicAuth(user, password)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	metrics.RPCRequestDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.RPCRequestsTotal.WithLabelValues(method, "error").Inc()
		return rawReply{}, &Error{Kind: KindConnection, Method: method, Message: MsgCannotConnect, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RPCRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return rawReply{}, &Error{Kind: KindConnection, Method: method, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}
	return rawReply{
		status:   resp.StatusCode,
		header:   resp.Header,
		body:     data,
		url:      endpoint,
		authSent: authSent,
	}, nil
}

func (c *Client) refreshToken(method string, reply rawReply) error {
	token := strings.TrimSpace(reply.header.Get(SessionHeader))
	if token == "" {
		return &Error{Kind: KindProtocol, Method: method, StatusCode: reply.status, Message: "409 without " + SessionHeader}
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	metrics.SessionTokenRefreshes.Inc()
	return nil
}

func decodeReply(method string, body []byte, dest any) error {
	var envelope Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &Error{Kind: KindProtocol, Method: method, Message: MsgInvalidResponse, Err: err}
	}
	if envelope.Result != "" && envelope.Result != "success" {
		return &Error{Kind: KindProtocol, Method: method, Message: envelope.Result}
	}
	if dest == nil {
		return nil
	}
	if len(envelope.Arguments) == 0 || string(envelope.Arguments) == "null" {
		return &Error{Kind: KindProtocol, Method: method, Message: "response has no arguments"}
	}
	if err := requireArguments(method, envelope.Arguments); err != nil {
		return err
	}
	if err := json.Unmarshal(envelope.Arguments, dest); err != nil {
		return &Error{Kind: KindProtocol, Method: method, Message: MsgInvalidResponse, Err: err}
	}
	return nil
}

// requiredArguments lists the reply keys each polled method must carry. A
// missing key would otherwise decode as a zero value.
var requiredArguments = map[string][]string{
	"session-stats": {"torrentCount", "activeTorrentCount", "pausedTorrentCount", "downloadSpeed", "uploadSpeed"},
	"session-get":   {"rpc-version"},
	"torrent-get":   {"torrents"},
}

func requireArguments(method string, raw json.RawMessage) error {
	keys := requiredArguments[method]
	if len(keys) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return &Error{Kind: KindProtocol, Method: method, Message: MsgInvalidResponse, Err: err}
	}
	for _, key := range keys {
		if v, ok := fields[key]; !ok || string(v) == "null" {
			return &Error{Kind: KindProtocol, Method: method, Message: fmt.Sprintf("response is missing %q", key)}
		}
	}
	return nil
}
