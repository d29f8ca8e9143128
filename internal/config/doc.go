// Package config loads the transmon configuration file.
//
// # Overview
//
// The file describes how to reach the Transmission daemon and how the
// indicator header is drawn. Every field is optional.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/transmon/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing/empty, use defaults
//  5. TRANSMON_USER and TRANSMON_PASSWORD replace the file credentials
//
// # Fields
//
//	host                  "localhost"
//	port                  9091
//	rpc_url               "/transmission/"
//	ssl                   false
//	user, password        basic auth, both required to be sent
//	poll_interval         10 (seconds, UI unfocused or headless)
//	active_poll_interval  2  (seconds, UI focused)
//	stats_torrents        true  (torrent count in header)
//	stats_icons           true  (speed arrows in header)
//	stats_numeric         true  (speeds in header)
//	always_show           false (header visible with no torrent)
//	metrics_addr          ""    (serve /metrics when set)
//	log_file              "~/.local/state/transmon/transmon.log"
//
// The boolean header options default to true, so the file uses pointer
// fields to tell "absent" from "false".
//
// # Path Expansion
//
// Paths starting with ~ are expanded to the user's home directory and made
// absolute.
package config
