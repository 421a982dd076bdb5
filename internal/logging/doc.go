// Package logging assembles structured slog loggers and formatting helpers used
// across cellar services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so worker code can automatically
// tag log lines with wine IDs, label task IDs, job kinds, and correlation IDs.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
