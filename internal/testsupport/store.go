package testsupport

import (
	"context"
	"testing"

	"cellar/internal/config"
	"cellar/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// InsertWine creates a placeholder wine for upc and returns its id.
func InsertWine(t testing.TB, st *store.Store, upc string) int64 {
	t.Helper()

	var id int64
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		id, err = tx.InsertPlaceholderWine(context.Background(), upc)
		return err
	})
	if err != nil {
		t.Fatalf("insert wine %q: %v", upc, err)
	}
	return id
}

// InsertBottle adds a bottle of wineID in slot (empty for none).
func InsertBottle(t testing.TB, st *store.Store, wineID int64, slot string) store.Bottle {
	t.Helper()

	var slotPtr *string
	if slot != "" {
		slotPtr = &slot
	}
	var bottle store.Bottle
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		bottle, err = tx.InsertBottle(context.Background(), wineID, nil, slotPtr)
		return err
	})
	if err != nil {
		t.Fatalf("insert bottle for wine %d: %v", wineID, err)
	}
	return bottle
}
