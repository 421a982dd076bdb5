package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cellar/internal/enrichment"
	"cellar/internal/labelreader"
	"cellar/internal/logging"
	"cellar/internal/reconcile"
	"cellar/internal/services"
	"cellar/internal/store"
	"cellar/internal/workqueue"
)

// JobSubmitter accepts background work.
type JobSubmitter interface {
	Submit(job workqueue.Job) error
}

// CellarDeps carries the components a CellarService is built from.
type CellarDeps struct {
	Store         *store.Store
	Engine        *reconcile.Engine
	Enricher      *enrichment.Enricher
	Reader        *labelreader.Reader
	Jobs          JobSubmitter
	MaxImageBytes int
	Logger        *slog.Logger
}

// CellarService exposes cellar operations returning API DTOs.
type CellarService struct {
	store         *store.Store
	engine        *reconcile.Engine
	enricher      *enrichment.Enricher
	reader        *labelreader.Reader
	jobs          JobSubmitter
	maxImageBytes int
	logger        *slog.Logger
}

// NewCellarService constructs a CellarService.
func NewCellarService(deps CellarDeps) *CellarService {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CellarService{
		store:         deps.Store,
		engine:        deps.Engine,
		enricher:      deps.Enricher,
		reader:        deps.Reader,
		jobs:          deps.Jobs,
		maxImageBytes: deps.MaxImageBytes,
		logger:        logging.NewComponentLogger(logger, "cellar-service"),
	}
}

// RecordScan registers a scanned bottle.
func (s *CellarService) RecordScan(ctx context.Context, req ScanRequest) (ScanResponse, error) {
	result, err := s.engine.RecordScan(ctx, reconcile.ScanRequest{
		Barcode: req.Barcode,
		Price:   req.Price,
		Slot:    req.Slot,
	})
	if err != nil {
		return ScanResponse{}, err
	}
	return ScanResponse{
		WineID:           result.WineID,
		BottleID:         result.BottleID,
		EnrichmentQueued: result.EnrichmentQueued,
	}, nil
}

// CreateLabelTask stores a queued task and hands image to the worker pool.
// When the pool refuses the job the task is failed immediately so pollers
// never wait on work that will not run.
func (s *CellarService) CreateLabelTask(ctx context.Context, image []byte, wantReview bool) (LabelTask, error) {
	if len(image) == 0 {
		return LabelTask{}, services.Wrap(services.ErrValidation, "api", "create label task", "image is required", nil)
	}
	if s.maxImageBytes > 0 && len(image) > s.maxImageBytes {
		return LabelTask{}, services.Wrap(services.ErrValidation, "api", "create label task",
			fmt.Sprintf("image exceeds %d bytes", s.maxImageBytes), nil)
	}
	task, err := s.store.CreateLabelTask(ctx)
	if err != nil {
		return LabelTask{}, err
	}

	ctx = services.WithTaskID(ctx, task.ID)
	logger := logging.WithContext(ctx, s.logger)
	job := s.reader.Job(task.ID, image, wantReview)
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		run := job.Run
		job.Run = func(jobCtx context.Context) error {
			return run(services.WithRequestID(jobCtx, requestID))
		}
	}
	if err := s.jobs.Submit(job); err != nil {
		logging.WarnWithContext(logger, "label job rejected", "label_job_rejected",
			"retry the upload once the queue drains", logging.Error(err))
		failed, advErr := s.store.AdvanceLabelTask(ctx, task.ID, store.TaskFailed, nil, "not queued: "+err.Error())
		if advErr != nil {
			return LabelTask{}, advErr
		}
		return FromLabelTask(failed), nil
	}
	logger.Info("label task queued", logging.Bool("review", wantReview), logging.Int("image_bytes", len(image)))
	return FromLabelTask(task), nil
}

// GetLabelTask returns the current state of a label task.
func (s *CellarService) GetLabelTask(ctx context.Context, id int64) (LabelTask, error) {
	task, err := s.store.GetLabelTask(ctx, id)
	if err != nil {
		return LabelTask{}, err
	}
	return FromLabelTask(task), nil
}

// ListLabelTasks returns tasks filtered by status names.
func (s *CellarService) ListLabelTasks(ctx context.Context, statuses []string) ([]LabelTask, error) {
	parsed := make([]store.TaskStatus, 0, len(statuses))
	for _, value := range statuses {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		status, ok := store.ParseTaskStatus(value)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list label tasks",
				fmt.Sprintf("unknown status %q", value), nil)
		}
		parsed = append(parsed, status)
	}
	tasks, err := s.store.ListLabelTasks(ctx, parsed...)
	if err != nil {
		return nil, err
	}
	return FromLabelTasks(tasks), nil
}

// ApplyLabelTask merges a finished reading into a wine, filling only empty
// fields.
func (s *CellarService) ApplyLabelTask(ctx context.Context, taskID, wineID int64) (WineUpdate, error) {
	wine, changed, err := labelreader.ApplyToWine(ctx, s.store, taskID, wineID)
	if err != nil {
		return WineUpdate{}, err
	}
	logging.WithContext(services.WithWineID(ctx, wineID), s.logger).Info("label reading applied",
		logging.Int64(logging.FieldTaskID, taskID),
		logging.Bool("changed", changed),
	)
	return WineUpdate{Wine: FromWine(wine), Changed: changed}, nil
}

// ListWines returns wines with bottle counts, newest first.
func (s *CellarService) ListWines(ctx context.Context, query WineQuery) ([]WineSummary, error) {
	if query.Limit < 0 || query.Offset < 0 {
		return nil, services.Wrap(services.ErrValidation, "api", "list wines", "limit and offset must not be negative", nil)
	}
	listings, err := s.store.ListWines(ctx, store.WineFilter{
		Query:            strings.TrimSpace(query.Query),
		PlaceholdersOnly: query.PlaceholdersOnly,
		Limit:            query.Limit,
		Offset:           query.Offset,
	})
	if err != nil {
		return nil, err
	}
	return FromWineListings(listings), nil
}

// GetWine returns a wine and its bottles.
func (s *CellarService) GetWine(ctx context.Context, id int64) (WineDetail, error) {
	wine, err := s.store.GetWine(ctx, id)
	if err != nil {
		return WineDetail{}, err
	}
	bottles, err := s.store.ListBottlesForWine(ctx, id)
	if err != nil {
		return WineDetail{}, err
	}
	return WineDetail{Wine: FromWine(wine), Bottles: FromBottles(bottles)}, nil
}

// UpdateWine applies a manual edit.
func (s *CellarService) UpdateWine(ctx context.Context, id int64, req WinePatchRequest) (Wine, error) {
	patch, err := ToWinePatch(req)
	if err != nil {
		return Wine{}, err
	}
	wine, err := s.store.UpdateWine(ctx, id, patch)
	if err != nil {
		return Wine{}, err
	}
	return FromWine(wine), nil
}

// DeleteWine removes a wine and all of its bottles.
func (s *CellarService) DeleteWine(ctx context.Context, id int64) (DeleteWineResponse, error) {
	removed, err := s.store.DeleteWine(ctx, id)
	if err != nil {
		return DeleteWineResponse{}, err
	}
	logging.WithContext(services.WithWineID(ctx, id), s.logger).Info("wine deleted",
		logging.Int("bottles_removed", removed),
	)
	return DeleteWineResponse{WineID: id, BottlesRemoved: removed}, nil
}

// DeleteBottle removes one bottle.
func (s *CellarService) DeleteBottle(ctx context.Context, id int64) error {
	return s.store.DeleteBottle(ctx, id)
}

// EnrichWine runs a barcode lookup for a wine synchronously.
func (s *CellarService) EnrichWine(ctx context.Context, id int64) (WineUpdate, error) {
	wine, err := s.store.GetWine(ctx, id)
	if err != nil {
		return WineUpdate{}, err
	}
	if wine.UPC == nil {
		return WineUpdate{}, services.Wrap(services.ErrValidation, "api", "enrich wine",
			fmt.Sprintf("wine %d has no barcode", id), nil)
	}
	if s.enricher == nil {
		return WineUpdate{}, services.Wrap(services.ErrProviderUnavailable, "api", "enrich wine", "enrichment disabled", nil)
	}
	result, err := s.enricher.Run(ctx, id, *wine.UPC)
	if err != nil {
		return WineUpdate{}, err
	}
	if result.Wine.ID == 0 {
		// Catalog had nothing usable; report the wine as it stands.
		return WineUpdate{Wine: FromWine(wine)}, nil
	}
	return WineUpdate{Wine: FromWine(result.Wine), Changed: result.Changed}, nil
}

// Stats returns cellar summary counts.
func (s *CellarService) Stats(ctx context.Context) (CellarStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return CellarStats{}, err
	}
	return FromStats(stats), nil
}
