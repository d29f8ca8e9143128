// Package app is the composition root for transmon.
//
// # Overview
//
// It turns a loaded config.Config into a running program: an RPC client, a
// state.Store, a monitor.Monitor and a front end. Two front ends exist:
//
//   - Run: the Bubble Tea UI, with monitor events delivered through a
//     ui.Bridge and log output redirected to the configured log file
//   - Watch: no UI; a monitor.LogObserver writes every event to stderr
//
// # Run Group
//
// Both modes run their members in one errgroup:
//
//	┌──────────────┐
//	│ runGroup()   │
//	└──────┬───────┘
//	       ├─────> monitor.Run()   Poll stats, session and list channels
//	       ├─────> serve()         /metrics, only when metrics_addr is set
//	       └─────> front end       ui.Run(); returning ends the group
//
// Cancelling the parent context (SIGINT, SIGTERM) stops every member. The
// metrics listener is opened before anything starts so a busy address fails
// fast.
//
// # Telemetry
//
// telemetry.Init is called on start. With OTEL_EXPORTER_OTLP_ENDPOINT unset
// it is a no-op; otherwise every poll becomes a span and the RPC transport
// is instrumented with otelhttp.
package app
