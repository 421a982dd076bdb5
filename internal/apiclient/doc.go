// Package apiclient talks to the cellar daemon's HTTP API. The CLI uses it
// for every command except daemon and config management.
//
// Error responses decode into *APIError, which unwraps to the matching
// marker in internal/services so callers can classify failures with
// errors.Is exactly as they would in-process.
package apiclient
