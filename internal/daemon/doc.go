// Package daemon coordinates the long-running cellar process.
//
// It wires configuration, the SQLite store, the background worker pool, the
// provider clients, and the HTTP API into a single lifecycle with flock-based
// locking to prevent multiple instances. At startup it fails label tasks left
// unfinished by a previous process; while running it sweeps tasks stuck in
// processing longer than workers.stale_task_minutes.
//
// Keep orchestration logic here: reconciliation, enrichment, and label
// reading live in their own packages while the daemon focuses on startup,
// shutdown, and HTTP transport.
package daemon
