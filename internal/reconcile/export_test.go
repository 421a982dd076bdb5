package reconcile

import (
	"context"

	"cellar/internal/store"
)

// SetWineLookup swaps the wine lookup used by RecordScan and returns a restore func.
func SetWineLookup(fn func(tx *store.Tx, ctx context.Context, upc string) (store.Wine, bool, error)) func() {
	prev := lookupWine
	lookupWine = fn
	return func() { lookupWine = prev }
}

// RealWineLookup is the production lookup.
var RealWineLookup = (*store.Tx).WineByUPC

const MaxScanAttempts = maxScanAttempts
