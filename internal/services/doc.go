// Package services defines shared utilities consumed by the cellar workers and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp wine IDs, label task IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can classify a
//     failure (not found, conflict, provider outage) without string matching.
//
// Use these helpers when wiring new worker or provider logic so operational
// behaviour (error handling, observability) stays uniform across the daemon.
package services
