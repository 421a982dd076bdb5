package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cellar/internal/logging"
	"cellar/internal/services"
	"cellar/internal/services/barcodelookup"
	"cellar/internal/store"
	"cellar/internal/workqueue"
)

// JobKind labels enrichment jobs in logs and metrics.
const JobKind = "enrichment"

const defaultLookupTimeout = 10 * time.Second

// Catalog looks up products by barcode.
type Catalog interface {
	Configured() bool
	Lookup(ctx context.Context, barcode string) (barcodelookup.Product, error)
}

// Submitter accepts background jobs.
type Submitter interface {
	Submit(job workqueue.Job) error
}

// Result reports what a run did.
type Result struct {
	Wine    store.Wine
	Changed bool
}

// Enricher patches wines with catalog data.
type Enricher struct {
	store   *store.Store
	catalog Catalog
	timeout time.Duration
	logger  *slog.Logger
}

// New constructs an enricher. timeout bounds each catalog call.
func New(st *store.Store, catalog Catalog, timeout time.Duration, logger *slog.Logger) *Enricher {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Enricher{
		store:   st,
		catalog: catalog,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "enrichment"),
	}
}

// Run looks barcode up and patches the wine. Errors are returned for the
// caller's bookkeeping; they never leave the wine in a worse state.
func (e *Enricher) Run(ctx context.Context, wineID int64, barcode string) (Result, error) {
	ctx = services.WithWineID(ctx, wineID)
	logger := logging.WithContext(ctx, e.logger).With(logging.String("barcode", barcode))

	if e.catalog == nil || !e.catalog.Configured() {
		logger.Info("barcode lookup not configured, skipping enrichment",
			logging.String(logging.FieldEventType, "enrichment_skipped"),
		)
		return Result{}, services.Wrap(services.ErrProviderUnavailable, "enrichment", "run", "barcode lookup key not configured", nil)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.timeout)
	product, err := e.catalog.Lookup(lookupCtx, barcode)
	cancel()
	if err != nil {
		logging.WarnWithContext(logger, "barcode lookup failed", "enrichment_lookup_failed",
			"wine stays a placeholder; edit it manually or retry enrichment",
			logging.Error(err),
		)
		return Result{}, err
	}

	descriptors := store.Descriptors{
		Producer: displayName(product.Brand),
		Label:    displayName(product.ProductName),
	}
	if descriptors.IsEmpty() {
		logger.Info("catalog entry has no brand or product name",
			logging.String(logging.FieldEventType, "enrichment_empty"),
		)
		return Result{}, nil
	}

	wine, changed, err := e.store.PatchWineDescriptors(ctx, wineID, descriptors, store.PatchOverwrite)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			logger.Info("wine removed before enrichment finished")
			return Result{}, nil
		}
		logging.ErrorWithContext(logger, "enrichment patch failed", "enrichment_patch_failed", "", logging.Error(err))
		return Result{}, err
	}
	logger.Info("wine enriched",
		logging.Bool("changed", changed),
		logging.String("producer", descriptors.Producer),
		logging.String("label", descriptors.Label),
	)
	return Result{Wine: wine, Changed: changed}, nil
}

// Job wraps Run for the worker pool. A missing credential is a skip, not a
// failure.
func (e *Enricher) Job(wineID int64, barcode string) workqueue.Job {
	return workqueue.Job{
		Kind: JobKind,
		Run: func(ctx context.Context) error {
			_, err := e.Run(ctx, wineID, barcode)
			if errors.Is(err, services.ErrProviderUnavailable) {
				return nil
			}
			return err
		},
	}
}

// Scheduler submits enrichment jobs to a worker pool.
type Scheduler struct {
	enricher  *Enricher
	submitter Submitter
}

// NewScheduler binds an enricher to a pool.
func NewScheduler(enricher *Enricher, submitter Submitter) *Scheduler {
	return &Scheduler{enricher: enricher, submitter: submitter}
}

// ScheduleEnrichment queues a run for wineID. The request id in ctx, if any,
// follows the job so its logs correlate with the scan.
func (s *Scheduler) ScheduleEnrichment(ctx context.Context, wineID int64, barcode string) error {
	job := s.enricher.Job(wineID, barcode)
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		run := job.Run
		job.Run = func(jobCtx context.Context) error {
			return run(services.WithRequestID(jobCtx, requestID))
		}
	}
	return s.submitter.Submit(job)
}

// displayName trims a catalog string and title-cases it when it arrives in
// all caps, which many catalogs use for brand names.
func displayName(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return ""
	}
	hasLetter := false
	for _, r := range value {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return value
			}
		}
	}
	if !hasLetter {
		return value
	}
	// Casers carry state and must not be shared between goroutines.
	return cases.Title(language.Und).String(value)
}
