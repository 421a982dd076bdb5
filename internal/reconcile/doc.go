// Package reconcile records bottle scans against the cellar.
//
// RecordScan resolves a barcode to a wine, creating a placeholder when the
// barcode is new, checks slot occupancy, and inserts the bottle, all inside one
// store transaction. The unique index on wines.upc is the only guard against
// duplicate placeholders: a concurrent insert that loses the race re-runs the
// whole transaction, which then finds the winner's row. Enrichment for a new
// wine is scheduled only after the transaction has committed.
package reconcile
