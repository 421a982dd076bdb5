package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cellar/internal/api"
	"cellar/internal/config"
	"cellar/internal/enrichment"
	"cellar/internal/labelreader"
	"cellar/internal/logging"
	"cellar/internal/reconcile"
	"cellar/internal/services/barcodelookup"
	"cellar/internal/services/llm"
	"cellar/internal/store"
	"cellar/internal/workqueue"
)

// shutdownGrace bounds how long Stop lets queued jobs drain before their
// context is cancelled.
const shutdownGrace = 10 * time.Second

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	registry *prometheus.Registry
	metrics  *workqueue.Metrics
	service  *api.CellarService
	api      *apiServer

	barcodes *barcodelookup.Client
	vision   *llm.Client
	text     *llm.Client

	lockPath string
	lock     *flock.Flock

	lifecycle sync.Mutex
	poolMu    sync.RWMutex
	pool      *workqueue.Pool
	running   atomic.Bool
	cancel    context.CancelFunc
	sweeper   sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := workqueue.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		registry: registry,
		metrics:  metrics,
		barcodes: barcodelookup.NewClient(barcodelookup.ConfigFrom(cfg)),
		vision:   llm.NewClient(llm.ConfigFrom(cfg.VisionLLM())),
		text:     llm.NewClient(llm.ConfigFrom(cfg.TextLLM())),
		lockPath: cfg.LockFile(),
		lock:     flock.New(cfg.LockFile()),
	}

	enricher := enrichment.New(st, d.barcodes, barcodelookup.ConfigFrom(cfg).Timeout, logger)
	reader := labelreader.New(st, d.vision, d.text, logger)
	engine := reconcile.NewEngine(st, enrichment.NewScheduler(enricher, d), logger)
	d.service = api.NewCellarService(api.CellarDeps{
		Store:         st,
		Engine:        engine,
		Enricher:      enricher,
		Reader:        reader,
		Jobs:          d,
		MaxImageBytes: cfg.Workers.MaxImageBytes,
		Logger:        logger,
	})

	d.api, err = newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Start acquires the daemon lock, recovers unfinished label tasks, and
// launches the worker pool, stale-task sweeper, and HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another cellar daemon instance is already running")
	}

	// Any task still open belongs to a process that is gone.
	recovered, err := d.store.FailUnfinishedTasks(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover unfinished label tasks: %w", err)
	}
	if recovered > 0 {
		d.logger.Warn("failed label tasks left by previous run",
			logging.Int64("count", recovered),
			logging.String(logging.FieldEventType, "label_tasks_recovered"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	pool := workqueue.New(workqueue.Options{
		Concurrency: d.cfg.Workers.Concurrency,
		QueueSize:   d.cfg.Workers.QueueSize,
	}, d.logger, d.metrics)
	pool.Start(runCtx)

	if err := d.api.start(runCtx); err != nil {
		cancel()
		pool.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.poolMu.Lock()
	d.pool = pool
	d.poolMu.Unlock()
	d.cancel = cancel
	d.sweeper.Add(1)
	go func() {
		defer d.sweeper.Done()
		d.sweepStaleTasks(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("cellar daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
		logging.Bool("barcode_lookup_configured", d.barcodes.Configured()),
		logging.Bool("llm_configured", d.vision.Configured()),
	)
	return nil
}

// Stop stops the API, drains background jobs, and releases the daemon lock.
func (d *Daemon) Stop() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()

	d.poolMu.Lock()
	pool := d.pool
	d.pool = nil
	d.poolMu.Unlock()
	drained := make(chan struct{})
	go func() {
		pool.Stop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(shutdownGrace):
		d.logger.Warn("background jobs still running at shutdown, cancelling",
			logging.String(logging.FieldEventType, "shutdown_cancel_jobs"),
		)
	}
	d.cancel()
	<-drained
	d.sweeper.Wait()
	d.cancel = nil

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("cellar daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Submit hands a job to the running worker pool.
func (d *Daemon) Submit(job workqueue.Job) error {
	d.poolMu.RLock()
	defer d.poolMu.RUnlock()
	if d.pool == nil {
		return workqueue.ErrStopped
	}
	return d.pool.Submit(job)
}

// Service returns the cellar operations served over HTTP.
func (d *Daemon) Service() *api.CellarService {
	return d.service
}

// APIAddress returns the address the HTTP API is listening on, or "" when it
// is not running.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	stats, err := d.service.Stats(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	queued := 0
	d.poolMu.RLock()
	if d.pool != nil {
		queued = d.pool.Pending()
	}
	d.poolMu.RUnlock()
	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		QueuedJobs:   queued,
		Cellar:       stats,
		Providers: []api.Provider{
			{Name: "barcode_lookup", Configured: d.barcodes.Configured()},
			{Name: "llm", Configured: d.vision.Configured()},
		},
	}, nil
}
