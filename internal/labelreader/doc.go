// Package labelreader turns an uploaded label photo into structured wine
// details and drives the owning label task to a terminal state.
//
// A run moves its task to processing before any provider call, asks the
// vision model for producer, label, vintage, region and country, optionally
// asks the text model for a short review, and stores the payload together
// with the done status in one write. Any failure of the vision step marks the
// task failed with no payload. A failed review only nulls the review field.
//
// Results are never merged into a wine automatically; see ApplyToWine.
package labelreader
