package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"cellar/internal/logging"
	"cellar/internal/services"
	"cellar/internal/store"
)

const maxScanAttempts = 3

// lookupWine is replaced in tests to simulate a concurrent placeholder insert.
var lookupWine = (*store.Tx).WineByUPC

// EnrichmentScheduler queues background enrichment for a newly created wine.
type EnrichmentScheduler interface {
	ScheduleEnrichment(ctx context.Context, wineID int64, barcode string) error
}

// ScanRequest is one scanned bottle. Barcode may be a string or a number.
type ScanRequest struct {
	Barcode any
	Price   *float64
	Slot    *string
}

// ScanResult identifies the rows a scan resolved to.
type ScanResult struct {
	WineID           int64
	BottleID         int64
	WineCreated      bool
	EnrichmentQueued bool
}

// Engine records scans.
type Engine struct {
	store     *store.Store
	scheduler EnrichmentScheduler
	logger    *slog.Logger
}

// NewEngine constructs an engine. A nil scheduler disables enrichment.
func NewEngine(st *store.Store, scheduler EnrichmentScheduler, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		store:     st,
		scheduler: scheduler,
		logger:    logging.NewComponentLogger(logger, "reconcile"),
	}
}

// RecordScan finds or creates the wine for req.Barcode and adds a bottle.
// An occupied slot fails with services.ErrConflict and writes nothing;
// malformed input fails with services.ErrValidation.
func (e *Engine) RecordScan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	barcode, err := NormalizeBarcode(req.Barcode)
	if err != nil {
		return ScanResult{}, err
	}
	if req.Price != nil && (math.IsNaN(*req.Price) || math.IsInf(*req.Price, 0) || *req.Price < 0) {
		return ScanResult{}, services.Wrap(services.ErrValidation, "reconcile", "record scan", "purchase price must be a non-negative number", nil)
	}
	slot := NormalizeSlot(req.Slot)

	var result ScanResult
	for attempt := 1; attempt <= maxScanAttempts; attempt++ {
		result, err = e.recordOnce(ctx, barcode, req.Price, slot)
		if err == nil {
			break
		}
		switch store.UniqueViolationColumn(err) {
		case "wines.upc":
			// Another scan created this wine between our lookup and insert.
			e.logger.Debug("placeholder insert lost race, retrying",
				logging.String("barcode", barcode),
				logging.Int("attempt", attempt),
			)
			if attempt < maxScanAttempts {
				continue
			}
			return ScanResult{}, services.Wrap(services.ErrConflict, "reconcile", "record scan",
				fmt.Sprintf("barcode %s still contended after %d attempts", barcode, maxScanAttempts), err)
		case "bottles.slot":
			return ScanResult{}, slotConflict(*slot, err)
		}
		return ScanResult{}, err
	}

	logger := logging.WithContext(ctx, e.logger).With(
		logging.Int64(logging.FieldWineID, result.WineID),
		logging.Int64("bottle_id", result.BottleID),
	)
	if result.WineCreated {
		result.EnrichmentQueued = e.schedule(ctx, logger, result.WineID, barcode)
	}
	logger.Info("scan recorded",
		logging.String("barcode", barcode),
		logging.Bool("wine_created", result.WineCreated),
		logging.Bool("enrichment_queued", result.EnrichmentQueued),
	)
	return result, nil
}

func (e *Engine) recordOnce(ctx context.Context, barcode string, price *float64, slot *string) (ScanResult, error) {
	var result ScanResult
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		result = ScanResult{}
		wine, found, err := lookupWine(tx, ctx, barcode)
		if err != nil {
			return err
		}
		if found {
			result.WineID = wine.ID
		} else {
			id, err := tx.InsertPlaceholderWine(ctx, barcode)
			if err != nil {
				return err
			}
			result.WineID = id
			result.WineCreated = true
		}

		if slot != nil {
			occupant, taken, err := tx.BottleBySlot(ctx, *slot)
			if err != nil {
				return err
			}
			if taken {
				return slotConflict(*slot, fmt.Errorf("occupied by bottle %d", occupant.ID))
			}
		}

		bottle, err := tx.InsertBottle(ctx, result.WineID, price, slot)
		if err != nil {
			return err
		}
		result.BottleID = bottle.ID
		return nil
	})
	return result, err
}

func (e *Engine) schedule(ctx context.Context, logger *slog.Logger, wineID int64, barcode string) bool {
	if e.scheduler == nil {
		return false
	}
	if err := e.scheduler.ScheduleEnrichment(ctx, wineID, barcode); err != nil {
		logging.WarnWithContext(logger, "enrichment not queued", "enrichment_rejected",
			"wine stays a placeholder; run enrich for it later",
			logging.Error(err),
		)
		return false
	}
	return true
}

func slotConflict(slot string, cause error) error {
	return services.Wrap(services.ErrConflict, "reconcile", "record scan",
		fmt.Sprintf("slot %q already occupied", slot), cause)
}
