package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cellar/internal/services"
	"cellar/internal/store"
	"cellar/internal/testsupport"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if st.Path() != filepath.Join(cfg.Paths.DataDir, "cellar.db") {
		t.Fatalf("unexpected path %q", st.Path())
	}
	testsupport.InsertWine(t, st, "0081234567890")
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	listings, err := reopened.ListWines(context.Background(), store.WineFilter{})
	if err != nil {
		t.Fatalf("ListWines failed: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 wine after reopen, got %d", len(listings))
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.InsertPlaceholderWine(ctx, "111111"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	err = st.WithTx(ctx, func(tx *store.Tx) error {
		_, found, err := tx.WineByUPC(ctx, "111111")
		if err != nil {
			return err
		}
		if found {
			t.Fatal("rolled back wine should not be visible")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}
}

func TestUniqueConstraintsSurfaceAsViolations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	wineID := testsupport.InsertWine(t, st, "222222")
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		_, err := tx.InsertPlaceholderWine(ctx, "222222")
		return err
	})
	if !store.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation for duplicate upc, got %v", err)
	}
	if col := store.UniqueViolationColumn(err); col != "wines.upc" {
		t.Fatalf("expected wines.upc column, got %q", col)
	}

	testsupport.InsertBottle(t, st, wineID, "A-01")
	slot := "A-01"
	err = st.WithTx(ctx, func(tx *store.Tx) error {
		_, err := tx.InsertBottle(ctx, wineID, nil, &slot)
		return err
	})
	if col := store.UniqueViolationColumn(err); col != "bottles.slot" {
		t.Fatalf("expected bottles.slot violation, got %q (%v)", col, err)
	}

	// NULL slots never collide.
	testsupport.InsertBottle(t, st, wineID, "")
	testsupport.InsertBottle(t, st, wineID, "")
}

func TestDeleteWineCascadesBottles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	wineID := testsupport.InsertWine(t, st, "333333")
	other := testsupport.InsertWine(t, st, "444444")
	for _, slot := range []string{"A-01", "A-02", ""} {
		testsupport.InsertBottle(t, st, wineID, slot)
	}
	testsupport.InsertBottle(t, st, other, "B-01")

	removed, err := st.DeleteWine(ctx, wineID)
	if err != nil {
		t.Fatalf("DeleteWine failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 bottles removed, got %d", removed)
	}
	if _, err := st.GetWine(ctx, wineID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Wines != 1 || stats.Bottles != 1 {
		t.Fatalf("unexpected stats after delete: %+v", stats)
	}
}

func TestDeleteWineUnknownMutatesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	wineID := testsupport.InsertWine(t, st, "555555")
	testsupport.InsertBottle(t, st, wineID, "C-01")

	if _, err := st.DeleteWine(ctx, wineID+100); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	bottles, err := st.ListBottlesForWine(ctx, wineID)
	if err != nil {
		t.Fatalf("ListBottlesForWine failed: %v", err)
	}
	if len(bottles) != 1 {
		t.Fatalf("expected bottle to survive, got %d", len(bottles))
	}
}

func TestDeleteBottle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	wineID := testsupport.InsertWine(t, st, "666666")
	bottle := testsupport.InsertBottle(t, st, wineID, "D-04")

	if err := st.DeleteBottle(ctx, bottle.ID); err != nil {
		t.Fatalf("DeleteBottle failed: %v", err)
	}
	if err := st.DeleteBottle(ctx, bottle.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	// The freed slot can be reused.
	testsupport.InsertBottle(t, st, wineID, "D-04")
}

func TestPatchWineDescriptorsNeverClobbersWithBlanks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	wineID := testsupport.InsertWine(t, st, "777777")
	wine, changed, err := st.PatchWineDescriptors(ctx, wineID, store.Descriptors{Producer: "Ridge", Label: "Monte Bello"}, store.PatchOverwrite)
	if err != nil {
		t.Fatalf("PatchWineDescriptors failed: %v", err)
	}
	if !changed || wine.Producer == nil || *wine.Producer != "Ridge" {
		t.Fatalf("expected producer set, got %+v (changed=%v)", wine, changed)
	}
	if wine.IsPlaceholder() {
		t.Fatal("patched wine should no longer be a placeholder")
	}

	wine, changed, err = st.PatchWineDescriptors(ctx, wineID, store.Descriptors{Producer: "  ", Label: "Geyserville"}, store.PatchOverwrite)
	if err != nil {
		t.Fatalf("PatchWineDescriptors failed: %v", err)
	}
	if !changed {
		t.Fatal("expected label change to be reported")
	}
	if *wine.Producer != "Ridge" {
		t.Fatalf("blank producer overwrote value: %q", *wine.Producer)
	}
	if *wine.Label != "Geyserville" {
		t.Fatalf("expected label overwrite, got %q", *wine.Label)
	}

	vintage := 2019
	wine, _, err = st.PatchWineDescriptors(ctx, wineID, store.Descriptors{Producer: "Other", Vintage: &vintage, Region: "Sonoma"}, store.PatchFillMissing)
	if err != nil {
		t.Fatalf("PatchWineDescriptors fill failed: %v", err)
	}
	if *wine.Producer != "Ridge" {
		t.Fatalf("fill-missing overwrote producer: %q", *wine.Producer)
	}
	if wine.Vintage == nil || *wine.Vintage != 2019 || wine.Region == nil || *wine.Region != "Sonoma" {
		t.Fatalf("expected vintage and region filled, got %+v", wine)
	}

	if _, _, err := st.PatchWineDescriptors(ctx, wineID+50, store.Descriptors{Producer: "X"}, store.PatchOverwrite); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateWine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.InsertWine(t, st, "888888")
	second := testsupport.InsertWine(t, st, "999999")

	producer := "Clos Rougeard"
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	wine, err := st.UpdateWine(ctx, first, store.WinePatch{
		Producer:   &producer,
		DrinkFrom:  &from,
		CriticData: json.RawMessage(`{"rp":96}`),
	})
	if err != nil {
		t.Fatalf("UpdateWine failed: %v", err)
	}
	if wine.Producer == nil || *wine.Producer != producer {
		t.Fatalf("producer not updated: %+v", wine)
	}
	if wine.DrinkFrom == nil || !wine.DrinkFrom.Equal(from) {
		t.Fatalf("drink_from not updated: %v", wine.DrinkFrom)
	}
	if string(wine.CriticData) != `{"rp":96}` {
		t.Fatalf("critic data not stored: %s", wine.CriticData)
	}

	taken := "999999"
	if _, err := st.UpdateWine(ctx, first, store.WinePatch{UPC: &taken}); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict for reused upc, got %v", err)
	}
	if _, err := st.UpdateWine(ctx, second+10, store.WinePatch{Producer: &producer}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListWinesFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	placeholder := testsupport.InsertWine(t, st, "123456")
	named := testsupport.InsertWine(t, st, "654321")
	testsupport.InsertBottle(t, st, named, "")
	testsupport.InsertBottle(t, st, named, "")
	if _, _, err := st.PatchWineDescriptors(ctx, named, store.Descriptors{Producer: "Trimbach", Label: "Clos Ste Hune"}, store.PatchOverwrite); err != nil {
		t.Fatalf("PatchWineDescriptors failed: %v", err)
	}

	all, err := st.ListWines(ctx, store.WineFilter{})
	if err != nil {
		t.Fatalf("ListWines failed: %v", err)
	}
	if len(all) != 2 || all[0].Wine.ID != named || all[0].BottleCount != 2 {
		t.Fatalf("unexpected listing: %+v", all)
	}

	placeholders, err := st.ListWines(ctx, store.WineFilter{PlaceholdersOnly: true})
	if err != nil {
		t.Fatalf("ListWines placeholders failed: %v", err)
	}
	if len(placeholders) != 1 || placeholders[0].Wine.ID != placeholder {
		t.Fatalf("unexpected placeholders: %+v", placeholders)
	}

	matches, err := st.ListWines(ctx, store.WineFilter{Query: "trimb"})
	if err != nil {
		t.Fatalf("ListWines query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Wine.ID != named {
		t.Fatalf("unexpected query matches: %+v", matches)
	}

	paged, err := st.ListWines(ctx, store.WineFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListWines paged failed: %v", err)
	}
	if len(paged) != 1 || paged[0].Wine.ID != placeholder {
		t.Fatalf("unexpected page: %+v", paged)
	}
}

func TestListBottlesForUnknownWine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	if _, err := st.ListBottlesForWine(context.Background(), 42); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
