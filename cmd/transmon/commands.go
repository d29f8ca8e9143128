package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/five82/transmon/internal/app"
	"github.com/five82/transmon/internal/config"
	"github.com/five82/transmon/internal/state"
	"github.com/five82/transmon/internal/transmission"
	"github.com/five82/transmon/internal/ui"
)

const commandTimeout = 30 * time.Second

// rootOptions holds the persistent flags. Connection flags override the
// config file only when given.
type rootOptions struct {
	configPath  string
	prefsPath   string
	host        string
	port        int
	rpcURL      string
	ssl         bool
	user        string
	password    string
	poll        time.Duration
	metricsAddr string
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "transmon",
		Short: "Terminal monitor for a Transmission daemon",
		Long: `transmon polls a Transmission daemon over its RPC interface and shows
session speeds and torrents in a terminal UI. Subcommands run one-shot
queries and actions, or a headless watch loop.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), app.Options{Config: cfg, PrefsPath: opts.prefsPath, Version: version})
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/transmon/config.toml)")
	flags.StringVar(&opts.prefsPath, "prefs", "", "UI preferences file (default ~/.config/transmon/prefs.toml)")
	flags.StringVar(&opts.host, "host", "", "daemon hostname or IP")
	flags.IntVar(&opts.port, "port", 0, "daemon RPC port")
	flags.StringVar(&opts.rpcURL, "rpc-url", "", "RPC base path, e.g. /transmission/")
	flags.BoolVar(&opts.ssl, "ssl", false, "use https")
	flags.StringVar(&opts.user, "user", "", "RPC username (or "+config.EnvUser+")")
	flags.StringVar(&opts.password, "password", "", "RPC password (or "+config.EnvPassword+")")
	flags.DurationVar(&opts.poll, "poll", 0, "idle poll interval, e.g. 10s")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		newWatchCmd(opts, version),
		newStatsCmd(opts, version),
		newListCmd(opts, version),
		newAddCmd(opts, version),
		newStartStopCmd(opts, version, true),
		newStartStopCmd(opts, version, false),
		newRemoveCmd(opts, version),
		newAltSpeedCmd(opts, version),
	)
	return root
}

// load reads the config file and applies the flags that were set.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = strings.TrimSpace(o.host)
	}
	if flags.Changed("port") {
		cfg.Port = o.port
	}
	if flags.Changed("rpc-url") {
		cfg.RPCURL = strings.TrimSpace(o.rpcURL)
	}
	if flags.Changed("ssl") {
		cfg.SSL = o.ssl
	}
	if flags.Changed("user") {
		cfg.User = strings.TrimSpace(o.user)
	}
	if flags.Changed("password") {
		cfg.Password = o.password
	}
	if flags.Changed("poll") {
		cfg.PollInterval = o.poll
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = strings.TrimSpace(o.metricsAddr)
	}
	return cfg, cfg.Validate()
}

func (o *rootOptions) client(cmd *cobra.Command, version string) (*transmission.Client, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	return app.NewClient(cfg, version)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), commandTimeout)
}

func newWatchCmd(opts *rootOptions, version string) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll without a UI and log every event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return app.Watch(cmd.Context(), app.Options{Config: cfg, Version: version}, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also log successful polls")
	return cmd
}

func newStatsCmd(opts *rootOptions, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print session statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client(cmd, version)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			session, err := client.Session(ctx)
			if err != nil {
				return err
			}
			stats, err := client.SessionStats(ctx)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), session, stats)
			return nil
		},
	}
}

func printStats(w io.Writer, session transmission.SessionSettings, stats transmission.SessionStats) {
	alt := "off"
	if session.AltSpeedEnabled {
		alt = "on"
	}
	fmt.Fprintf(w, "Transmission %s (rpc-version %d)\n", session.Version, session.RPCVersion)
	fmt.Fprintf(w, "Torrents: %d (%d active, %d paused)\n",
		stats.TorrentCount, stats.ActiveTorrentCount, stats.PausedTorrentCount)
	fmt.Fprintln(w, ui.InfoText(stats))
	fmt.Fprintf(w, "Alt speed: %s\n", alt)
}

func newListCmd(opts *rootOptions, version string) *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List torrents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client(cmd, version)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			// The session decides how status codes are read.
			session, err := client.Session(ctx)
			if err != nil {
				return err
			}
			list, err := client.Torrents(ctx, active)
			if err != nil {
				return err
			}
			store := &state.Store{}
			store.ApplySession(session)
			store.ApplyList(list)
			printTorrents(cmd.OutOrStdout(), store.Snapshot().Torrents)
			return nil
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "only recently active torrents")
	return cmd
}

func printTorrents(w io.Writer, torrents []transmission.Torrent) {
	if len(torrents) == 0 {
		fmt.Fprintln(w, "No torrent")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "STATUS", "DONE", "DOWN", "UP", "INFO")
	for _, tr := range torrents {
		info := ui.DescribeTorrent(tr)
		t.Row(
			strconv.Itoa(tr.ID),
			tr.Name,
			tr.Status.String(),
			strconv.FormatFloat(tr.PercentDone*100, 'f', 1, 64)+"%",
			ui.HumanRate(tr.RateDownload),
			ui.HumanRate(tr.RateUpload),
			info.Seeds,
		)
	}
	fmt.Fprintln(w, t.Render())
}

func newAddCmd(opts *rootOptions, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url|magnet>...",
		Short: "Add torrents by URL or magnet link",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd, version)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			rejected := 0
			for _, filename := range args {
				res, err := client.AddTorrent(ctx, filename)
				switch {
				case err != nil:
					return err
				case res.Accepted:
					fmt.Fprintf(out, "added %s (id %d)\n", res.Name, res.ID)
				case res.Duplicate:
					rejected++
					fmt.Fprintf(out, "duplicate %s (id %d)\n", res.Name, res.ID)
				default:
					rejected++
					fmt.Fprintf(out, "rejected %s\n", filename)
				}
			}
			if rejected > 0 {
				return fmt.Errorf("%d of %d torrents not added", rejected, len(args))
			}
			return nil
		},
	}
}

func newStartStopCmd(opts *rootOptions, version string, start bool) *cobra.Command {
	use, short := "stop [id...]", "Stop torrents (all when no id is given)"
	if start {
		use, short = "start [id...]", "Start torrents (all when no id is given)"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := opts.client(cmd, version)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if start {
				return client.StartTorrents(ctx, ids...)
			}
			return client.StopTorrents(ctx, ids...)
		},
	}
}

func newRemoveCmd(opts *rootOptions, version string) *cobra.Command {
	var deleteData bool
	cmd := &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove torrents from the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := opts.client(cmd, version)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return client.RemoveTorrents(ctx, deleteData, ids...)
		},
	}
	cmd.Flags().BoolVar(&deleteData, "delete-data", false, "also delete downloaded files")
	return cmd
}

func newAltSpeedCmd(opts *rootOptions, version string) *cobra.Command {
	return &cobra.Command{
		Use:       "alt-speed [on|off]",
		Short:     "Show or set the alternative speed limits",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd, version)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if len(args) == 1 {
				if err := client.SetAltSpeedEnabled(ctx, args[0] == "on"); err != nil {
					return err
				}
			}
			session, err := client.Session(ctx)
			if err != nil {
				return err
			}
			mode := "off"
			if session.AltSpeedEnabled {
				mode = "on"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Alt speed: %s\n", mode)
			return nil
		},
	}
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid torrent id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
