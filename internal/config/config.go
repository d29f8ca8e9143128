package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/transmon/internal/transmission"
)

// Config holds the daemon connection and indicator options.
type Config struct {
	Host     string
	Port     int
	RPCURL   string
	SSL      bool
	User     string
	Password string

	PollInterval       time.Duration // while the monitor is in the background
	ActivePollInterval time.Duration // while the UI has focus

	StatsTorrents bool // torrent count in the header
	StatsIcons    bool // speed arrows in the header
	StatsNumeric  bool // speeds in the header
	AlwaysShow    bool // keep the header visible with no torrent

	MetricsAddr string
	LogFile     string
}

const (
	defaultConfigPath         = "~/.config/transmon/config.toml"
	defaultLogFile            = "~/.local/state/transmon/transmon.log"
	defaultPollInterval       = 10 * time.Second
	defaultActivePollInterval = 2 * time.Second

	// EnvUser and EnvPassword override the credentials from the file.
	EnvUser     = "TRANSMON_USER"
	EnvPassword = "TRANSMON_PASSWORD"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Host:               transmission.DefaultHost,
		Port:               transmission.DefaultPort,
		RPCURL:             transmission.DefaultBasePath,
		PollInterval:       defaultPollInterval,
		ActivePollInterval: defaultActivePollInterval,
		StatsTorrents:      true,
		StatsIcons:         true,
		StatsNumeric:       true,
		LogFile:            mustExpand(defaultLogFile),
	}
}

// DefaultPath returns the expanded default config file location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

type fileConfig struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	RPCURL             string `toml:"rpc_url"`
	SSL                bool   `toml:"ssl"`
	User               string `toml:"user"`
	Password           string `toml:"password"`
	PollInterval       int    `toml:"poll_interval"`
	ActivePollInterval int    `toml:"active_poll_interval"`
	StatsTorrents      *bool  `toml:"stats_torrents"`
	StatsIcons         *bool  `toml:"stats_icons"`
	StatsNumeric       *bool  `toml:"stats_numeric"`
	AlwaysShow         bool   `toml:"always_show"`
	MetricsAddr        string `toml:"metrics_addr"`
	LogFile            string `toml:"log_file"`
}

// Load locates and parses the config, falling back to defaults when missing.
// Credentials from the environment win over the file.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if host := strings.TrimSpace(raw.Host); host != "" {
		cfg.Host = host
	}
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if rpcURL := strings.TrimSpace(raw.RPCURL); rpcURL != "" {
		cfg.RPCURL = rpcURL
	}
	cfg.SSL = raw.SSL
	cfg.User = strings.TrimSpace(raw.User)
	cfg.Password = raw.Password
	if raw.PollInterval > 0 {
		cfg.PollInterval = time.Duration(raw.PollInterval) * time.Second
	}
	if raw.ActivePollInterval > 0 {
		cfg.ActivePollInterval = time.Duration(raw.ActivePollInterval) * time.Second
	}
	if raw.StatsTorrents != nil {
		cfg.StatsTorrents = *raw.StatsTorrents
	}
	if raw.StatsIcons != nil {
		cfg.StatsIcons = *raw.StatsIcons
	}
	if raw.StatsNumeric != nil {
		cfg.StatsNumeric = *raw.StatsNumeric
	}
	cfg.AlwaysShow = raw.AlwaysShow
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	if logFile := strings.TrimSpace(raw.LogFile); logFile != "" {
		cfg.LogFile = mustExpand(logFile)
	}

	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if user, ok := os.LookupEnv(EnvUser); ok {
		cfg.User = strings.TrimSpace(user)
	}
	if password, ok := os.LookupEnv(EnvPassword); ok {
		cfg.Password = password
	}
}

// Validate checks the connection settings and poll intervals.
func (c Config) Validate() error {
	if err := c.Connection().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.PollInterval <= 0 || c.ActivePollInterval <= 0 {
		return fmt.Errorf("invalid config: poll intervals must be positive")
	}
	return nil
}

// Connection returns the daemon endpoint described by the config.
func (c Config) Connection() transmission.Connection {
	return transmission.Connection{
		Host:     c.Host,
		Port:     c.Port,
		BasePath: c.RPCURL,
		UseTLS:   c.SSL,
	}
}

// HasCredentials reports whether both user and password are set.
func (c Config) HasCredentials() bool {
	return c.User != "" && c.Password != ""
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
