package workqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"cellar/internal/logging"
	"cellar/internal/services"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("work queue full")
	// ErrStopped is returned by Submit once Stop has been called.
	ErrStopped = errors.New("work queue stopped")
)

// Job is one unit of background work.
type Job struct {
	// Kind labels the job in logs and metrics (e.g. "enrichment", "label").
	Kind string
	Run  func(ctx context.Context) error
}

// Options sizes the pool.
type Options struct {
	Concurrency int
	QueueSize   int
}

// Pool executes submitted jobs on a fixed number of goroutines.
type Pool struct {
	jobs        chan Job
	concurrency int
	logger      *slog.Logger
	metrics     *Metrics

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New constructs a pool. Jobs submitted before Start wait in the queue.
func New(opts Options, logger *slog.Logger, metrics *Metrics) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		jobs:        make(chan Job, opts.QueueSize),
		concurrency: opts.Concurrency,
		logger:      logging.NewComponentLogger(logger, "workqueue"),
		metrics:     metrics,
	}
}

// Start launches the worker goroutines. Jobs run with ctx; cancelling it does
// not stop the pool, it only signals running jobs.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Debug("worker pool started",
		logging.Int("concurrency", p.concurrency),
		logging.Int("queue_size", cap(p.jobs)),
	)
}

// Submit enqueues job without blocking.
func (p *Pool) Submit(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("submit %s job: nil run function", job.Kind)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.metrics.rejected(job.Kind, "stopped")
		return ErrStopped
	}
	select {
	case p.jobs <- job:
		p.metrics.submitted(job.Kind)
		return nil
	default:
		p.metrics.rejected(job.Kind, "full")
		return ErrQueueFull
	}
}

// Pending returns the number of queued jobs not yet picked up by a worker.
func (p *Pool) Pending() int {
	return len(p.jobs)
}

// Stop refuses new jobs, waits for queued and running jobs to finish, and
// returns. It is safe to call more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	started := p.started
	p.mu.Unlock()

	if !started {
		// Nobody will run the backlog; count it as dropped.
		for job := range p.jobs {
			p.metrics.started()
			p.metrics.finished(job.Kind, outcomeFailed, 0)
			p.logger.Warn("job dropped before pool start", logging.String(logging.FieldJobKind, job.Kind))
		}
		return
	}
	p.wg.Wait()
	p.logger.Debug("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(ctx, id, job)
	}
}

func (p *Pool) run(ctx context.Context, workerID int, job Job) {
	p.metrics.started()
	start := time.Now()
	jobCtx := services.WithJobKind(ctx, job.Kind)
	logger := logging.WithContext(jobCtx, p.logger).With(logging.Int("worker", workerID))

	outcome := outcomeSucceeded
	defer func() {
		if r := recover(); r != nil {
			outcome = outcomePanicked
			logger.Error("job panicked",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
		}
		elapsed := time.Since(start)
		p.metrics.finished(job.Kind, outcome, elapsed.Seconds())
		logger.Debug("job finished", logging.String("outcome", outcome), logging.Duration("duration", elapsed))
	}()

	if err := job.Run(jobCtx); err != nil {
		outcome = outcomeFailed
		logger.Warn("job failed", logging.Error(err))
	}
}
