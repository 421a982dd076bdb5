// Package api defines the service surface and wire-format types shared by
// the daemon's HTTP layer and the CLI client. It translates store records
// into transport-friendly DTOs so consumers never couple to internal types.
//
// # Key Types
//
// CellarService: the operations the HTTP layer exposes. Scans run through the
// reconciliation engine; label uploads create a task and hand the image to the
// worker pool; everything else reads or edits the store directly.
//
// Wine/Bottle/LabelTask: transport representations of store records.
//
// WineDetail: a wine with its bottles, fetched explicitly rather than loaded
// lazily.
//
// # Errors
//
// Service methods return errors wrapping the markers in internal/services.
// HTTPStatus maps them to status codes; the HTTP layer does nothing else with
// them.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds and
// drink window dates use YYYY-MM-DD. Label task payloads pass through as
// json.RawMessage to avoid double-encoding.
package api
