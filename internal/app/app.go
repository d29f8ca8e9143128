package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/transmon/internal/config"
	"github.com/five82/transmon/internal/monitor"
	"github.com/five82/transmon/internal/prefs"
	"github.com/five82/transmon/internal/state"
	"github.com/five82/transmon/internal/telemetry"
	"github.com/five82/transmon/internal/transmission"
	"github.com/five82/transmon/internal/ui"
)

const serviceName = "transmon"

// Options configure a transmon run.
type Options struct {
	Config    config.Config
	PrefsPath string // empty uses default ~/.config/transmon/prefs.toml
	Version   string
}

// NewClient builds an RPC client for the configured daemon, credentials
// included.
func NewClient(cfg config.Config, version string) (*transmission.Client, error) {
	client, err := transmission.NewClient(cfg.Connection(), transmission.Options{
		UserAgent: serviceName + "/" + version,
	})
	if err != nil {
		return nil, fmt.Errorf("init transmission client: %w", err)
	}
	client.SetCredentials(cfg.User, cfg.Password)
	return client, nil
}

// Run boots the TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config

	// The terminal belongs to the UI; log lines go to a file instead.
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := tea.LogToFile(cfg.LogFile, serviceName)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	shutdown := initTelemetry(ctx, opts.Version)
	defer shutdown()

	client, err := NewClient(cfg, opts.Version)
	if err != nil {
		return err
	}
	store := &state.Store{}
	bridge := &ui.Bridge{}
	mon := monitor.New(client, store, bridge, monitor.Options{Interval: cfg.PollInterval})

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	log.Printf("starting ui against %s", client.Endpoint())
	return runGroup(ctx, mon, cfg.MetricsAddr, func(ctx context.Context) error {
		return ui.Run(ctx, ui.Options{
			Store:      store,
			Controller: mon,
			Bridge:     bridge,
			Header: ui.HeaderOptions{
				Torrents: cfg.StatsTorrents,
				Icons:    cfg.StatsIcons,
				Numeric:  cfg.StatsNumeric,
			},
			AlwaysShow:     cfg.AlwaysShow,
			WebURL:         cfg.Connection().WebURL(),
			ActiveInterval: cfg.ActivePollInterval,
			IdleInterval:   cfg.PollInterval,
			ThemeName:      userPrefs.Theme,
			Layout:         userPrefs.Layout,
			PrefsPath:      opts.PrefsPath,
			LogPath:        cfg.LogFile,
		})
	})
}

// Watch polls without a UI, logging every event to stderr, until the context
// is cancelled. Verbose also logs successful polls.
func Watch(ctx context.Context, opts Options, verbose bool) error {
	cfg := opts.Config

	shutdown := initTelemetry(ctx, opts.Version)
	defer shutdown()

	client, err := NewClient(cfg, opts.Version)
	if err != nil {
		return err
	}
	mon := monitor.New(client, nil, monitor.LogObserver{Verbose: verbose}, monitor.Options{Interval: cfg.PollInterval})

	log.Printf("watching %s every %s", client.Endpoint(), cfg.PollInterval)
	if cfg.MetricsAddr != "" {
		log.Printf("metrics on http://%s/metrics", cfg.MetricsAddr)
	}
	return runGroup(ctx, mon, cfg.MetricsAddr, nil)
}

func initTelemetry(ctx context.Context, version string) func() {
	shutdown, err := telemetry.Init(ctx, serviceName, version)
	if err != nil || shutdown == nil {
		if err != nil {
			log.Printf("telemetry disabled: %v", err)
		}
		return func() {}
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}
}
