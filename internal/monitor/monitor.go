package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/five82/transmon/internal/metrics"
	"github.com/five82/transmon/internal/state"
	"github.com/five82/transmon/internal/transmission"
)

const (
	// DefaultInterval is the poll cadence when Options.Interval is unset.
	DefaultInterval = 10 * time.Second
	// MinInterval bounds SetPollInterval from below.
	MinInterval = 500 * time.Millisecond

	actionTimeout = 30 * time.Second
)

var tracer = otel.Tracer("github.com/five82/transmon/internal/monitor")

// Channel is one independently scheduled poll category.
type Channel int

const (
	ChannelStats Channel = iota
	ChannelSession
	ChannelList
	numChannels
)

func (c Channel) String() string {
	switch c {
	case ChannelStats:
		return "stats"
	case ChannelSession:
		return "session"
	case ChannelList:
		return "list"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Action is a one-shot torrent command.
type Action int

const (
	ActionStart Action = iota
	ActionStop
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	case ActionRemove:
		return "remove"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Client is the daemon surface the monitor drives. *transmission.Client
// implements it.
type Client interface {
	transmission.RPC
	Configure(conn transmission.Connection) error
	SetCredentials(user, password string)
}

// Options configure a Monitor.
type Options struct {
	Interval time.Duration
}

type channelState struct {
	seq      uint64 // bumped whenever the pending timer is invalidated
	timer    *time.Timer
	inflight bool
	parked   bool // stopped after an authentication failure
}

func (cs *channelState) cancelTimer() {
	cs.seq++
	if cs.timer != nil {
		cs.timer.Stop()
		cs.timer = nil
	}
}

// Monitor polls the daemon on three channels and merges the replies into a
// state.Store.
type Monitor struct {
	client   Client
	store    *state.Store
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	running    bool
	stopped    bool
	interval   time.Duration
	connGen    uint64
	listLoaded bool
	channels   [numChannels]channelState

	// dispatch serializes observer notifications.
	dispatch sync.Mutex
}

// New builds a Monitor. A nil observer discards events and a nil store is
// replaced by an empty one.
func New(client Client, store *state.Store, observer Observer, opts Options) *Monitor {
	if store == nil {
		store = &state.Store{}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	metrics.PollIntervalSeconds.Set(interval.Seconds())
	return &Monitor{
		client:   client,
		store:    store,
		observer: observer,
		ctx:      ctx,
		cancel:   cancel,
		interval: interval,
	}
}

// Store returns the store the monitor writes to.
func (m *Monitor) Store() *state.Store {
	return m.store
}

// Interval returns the current poll cadence.
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Run polls every channel until ctx is cancelled, then stops all timers and
// waits for outstanding requests.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running || m.stopped {
		m.mu.Unlock()
		return errors.New("monitor already started")
	}
	m.running = true
	m.restartLocked()
	m.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-m.ctx.Done():
	}

	m.mu.Lock()
	m.stopped = true
	for i := range m.channels {
		m.channels[i].cancelTimer()
	}
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
	return nil
}

// SetPollInterval cancels every pending timer and polls all channels now.
// Later polls use d.
func (m *Monitor) SetPollInterval(d time.Duration) {
	if d < MinInterval {
		d = MinInterval
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
	metrics.PollIntervalSeconds.Set(d.Seconds())
	m.restartLocked()
}

// Configure points the client at a new daemon, forgets all cached state and
// restarts polling with a full list.
func (m *Monitor) Configure(conn transmission.Connection) error {
	if err := m.client.Configure(conn); err != nil {
		return err
	}
	m.reconnect()
	return nil
}

// SetCredentials changes the basic auth pair and restarts polling.
func (m *Monitor) SetCredentials(user, password string) {
	m.client.SetCredentials(user, password)
	m.reconnect()
}

func (m *Monitor) reconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connGen++
	m.listLoaded = false
	m.store.ResetTorrents()
	for i := range m.channels {
		m.channels[i].parked = false
	}
	m.restartLocked()
}

// restartLocked cancels every timer and starts each idle channel. Channels
// with a request in flight re-arm from their completion.
func (m *Monitor) restartLocked() {
	if !m.running || m.stopped {
		return
	}
	for ch := Channel(0); ch < numChannels; ch++ {
		m.channels[ch].cancelTimer()
		m.startLocked(ch)
	}
}

func (m *Monitor) startLocked(ch Channel) {
	cs := &m.channels[ch]
	if cs.inflight || cs.parked || m.stopped {
		return
	}
	cs.cancelTimer()
	cs.inflight = true
	full := ch == ChannelList && !m.listLoaded
	gen := m.connGen
	m.wg.Add(1)
	go m.poll(ch, gen, full)
}

func (m *Monitor) armLocked(ch Channel) {
	cs := &m.channels[ch]
	cs.cancelTimer()
	seq := cs.seq
	cs.timer = time.AfterFunc(m.interval, func() { m.fire(ch, seq) })
}

func (m *Monitor) fire(ch Channel, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := &m.channels[ch]
	if cs.seq != seq {
		return
	}
	cs.timer = nil
	m.startLocked(ch)
}

type pollResult struct {
	stats   transmission.SessionStats
	session transmission.SessionSettings
	list    transmission.TorrentList
}

func (m *Monitor) fetch(ctx context.Context, ch Channel, full bool) (pollResult, error) {
	var res pollResult
	var err error
	switch ch {
	case ChannelStats:
		res.stats, err = m.client.SessionStats(ctx)
	case ChannelSession:
		res.session, err = m.client.Session(ctx)
	case ChannelList:
		res.list, err = m.client.Torrents(ctx, !full)
		res.list.Partial = !full
	}
	return res, err
}

func (m *Monitor) poll(ch Channel, gen uint64, full bool) {
	defer m.wg.Done()
	ctx, span := tracer.Start(m.ctx, "poll "+ch.String(), trace.WithAttributes(
		attribute.String("transmon.channel", ch.String()),
		attribute.Bool("transmon.full_list", full),
	))
	res, err := m.fetch(ctx, ch, full)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, transmission.KindOf(err).String())
	}
	span.End()
	m.complete(ch, gen, full, res, err)
}

// complete applies one channel reply and schedules the channel's next poll.
// It is the only place a channel timer is armed.
func (m *Monitor) complete(ch Channel, gen uint64, full bool, res pollResult, err error) {
	m.dispatch.Lock()
	defer m.dispatch.Unlock()

	m.mu.Lock()
	cs := &m.channels[ch]
	stale := gen != m.connGen
	shutdown := m.stopped || m.ctx.Err() != nil
	var notify func()
	switch {
	case shutdown:
	case stale:
		// Reply for a previous connection; poll the new one right away.
	case err != nil:
		notify = m.failedLocked(ch, err)
	default:
		notify = m.appliedLocked(ch, full, res)
	}
	cs.inflight = false
	if !shutdown {
		switch {
		case stale:
			m.startLocked(ch)
		case !cs.parked:
			m.armLocked(ch)
		}
	}
	m.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (m *Monitor) appliedLocked(ch Channel, full bool, res pollResult) func() {
	switch ch {
	case ChannelStats:
		m.store.ApplyStats(res.stats)
		metrics.DownloadSpeedBytes.Set(float64(res.stats.DownloadSpeed))
		metrics.UploadSpeedBytes.Set(float64(res.stats.UploadSpeed))
		metrics.TorrentCount.Set(float64(res.stats.TorrentCount))
		return func() { m.observer.OnStatsUpdated(res.stats) }
	case ChannelSession:
		m.store.ApplySession(res.session)
		if res.session.AltSpeedEnabled {
			metrics.AltSpeedEnabled.Set(1)
		} else {
			metrics.AltSpeedEnabled.Set(0)
		}
		return func() { m.observer.OnSessionUpdated(res.session) }
	default:
		removed := m.store.ApplyList(res.list)
		if full {
			m.listLoaded = true
		}
		recordTorrentMetrics(m.store.Snapshot())
		return func() { m.observer.OnListUpdated(removed) }
	}
}

func (m *Monitor) failedLocked(ch Channel, err error) func() {
	m.store.RecordError(err)
	kind := transmission.KindOf(err)
	metrics.PollFailuresTotal.WithLabelValues(ch.String(), kind.String()).Inc()

	// A restarted daemon forgets removed ids; the next list is a full one.
	if ch == ChannelList && kind != transmission.KindAuthentication {
		m.listLoaded = false
	}

	message := transmission.MessageOf(err)
	switch kind {
	case transmission.KindAuthentication:
		m.channels[ch].parked = true
		log.Printf("%s poll: %v (paused until configuration changes)", ch, err)
	case transmission.KindProtocol:
		kind = transmission.KindConnection
		message = transmission.MsgInvalidResponse
		log.Printf("%s poll: %v", ch, err)
	default:
		log.Printf("%s poll: %v", ch, err)
	}
	return func() { m.observer.OnConnectionError(kind, message) }
}

func recordTorrentMetrics(snap state.Snapshot) {
	counts := make(map[transmission.Status]int)
	for _, t := range snap.Torrents {
		counts[t.Status]++
	}
	for s := transmission.StatusStopped; s <= transmission.StatusUnknown; s++ {
		metrics.TorrentsByStatus.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}

// SendAction fires a start, stop or remove request without waiting for it.
// Start and stop with no ids apply to every torrent. Failures are logged.
func (m *Monitor) SendAction(action Action, ids ...int) {
	m.goOneShot(func(ctx context.Context) {
		var err error
		switch action {
		case ActionStart:
			err = m.client.StartTorrents(ctx, ids...)
		case ActionStop:
			err = m.client.StopTorrents(ctx, ids...)
		case ActionRemove:
			err = m.client.RemoveTorrents(ctx, false, ids...)
		default:
			err = fmt.Errorf("unknown action %d", int(action))
		}
		if err != nil {
			log.Printf("%s %v: %v", action, ids, err)
		}
	})
}

// AddTorrent submits a torrent URL or magnet link and reports whether the
// daemon accepted it through OnTorrentAdded.
func (m *Monitor) AddTorrent(filename string) {
	m.goOneShot(func(ctx context.Context) {
		res, err := m.client.AddTorrent(ctx, filename)
		if err != nil {
			log.Printf("add torrent %q: %v", filename, err)
		}
		accepted := err == nil && res.Accepted
		m.dispatch.Lock()
		defer m.dispatch.Unlock()
		m.observer.OnTorrentAdded(accepted)
	})
}

// SetAltSpeedEnabled toggles the daemon's alternative speed limits and
// refreshes the session channel once the daemon confirms.
func (m *Monitor) SetAltSpeedEnabled(enabled bool) {
	m.goOneShot(func(ctx context.Context) {
		if err := m.client.SetAltSpeedEnabled(ctx, enabled); err != nil {
			log.Printf("set alt speed %v: %v", enabled, err)
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.running && !m.stopped {
			m.channels[ChannelSession].cancelTimer()
			m.startLocked(ChannelSession)
		}
	})
}

func (m *Monitor) goOneShot(fn func(ctx context.Context)) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(m.ctx, actionTimeout)
		defer cancel()
		fn(ctx)
	}()
}
