// Package transmission provides an HTTP client for the Transmission daemon's
// JSON-RPC API.
//
// # Overview
//
// Every call is a POST of {"method": ..., "arguments": ...} to
// scheme://host:port<base path>rpc. Replies are wrapped in
// {"result": "success", "arguments": {...}}.
//
// The package is split into three files:
//
//   - client.go: Client, request envelope, session-token handshake
//   - types.go: Connection, payload types, status mappings
//   - errors.go: Error and its kinds
//
// # Session Token
//
// The daemon protects its endpoint with X-Transmission-Session-Id. A request
// without a valid token gets a 409 whose response header carries a fresh one.
// Call stores that token and resends the request once. A second 409 on the
// resend is returned as a connection error instead of looping.
//
// # Errors
//
// Failures come back as *Error with one of three kinds:
//
//   - KindAuthentication: HTTP 401. The message says whether credentials were
//     missing or rejected.
//   - KindConnection: transport failures and statuses other than 200/401/409.
//   - KindProtocol: malformed JSON, missing arguments, or a result other than
//     "success".
//
// # Status Codes
//
// Daemons older than rpc-version 14 report status as sparse bit values
// (1, 2, 4, 8, 16). Newer daemons use 0..6. Torrent keeps the raw value;
// MappingFor picks the decoder for a given rpc-version.
//
// # Usage Example
//
//	client, err := transmission.NewClient(transmission.Connection{
//		Host:     "localhost",
//		Port:     9091,
//		BasePath: "/transmission/",
//	}, transmission.Options{})
//	if err != nil {
//		log.Fatalf("init client: %v", err)
//	}
//	stats, err := client.SessionStats(ctx)
//
// Actions (start, stop, remove, add, session-set) share a token-bucket limiter
// so a held-down key cannot flood the daemon.
package transmission
