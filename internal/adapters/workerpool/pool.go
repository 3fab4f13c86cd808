// Package workerpool runs job tasks on a fixed set of goroutines fed by a bounded queue.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/target/mmk-summarizer/internal/core"
	apperrors "github.com/target/mmk-summarizer/internal/errors"
	"github.com/target/mmk-summarizer/internal/observability/metrics"
	"github.com/target/mmk-summarizer/internal/observability/statsd"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
)

var (
	// ErrQueueFull is returned by Reserve when every worker is busy and the queue is full.
	ErrQueueFull = apperrors.Busy("job queue is full")
	// ErrShuttingDown is returned by Reserve once Shutdown has started.
	ErrShuttingDown = apperrors.Busy("worker pool is shutting down")
	// ErrNotStarted is returned by Reserve before Start.
	ErrNotStarted = apperrors.Busy("worker pool is not started")

	ErrHandlerRequired = errors.New("task handler is required")
	ErrAlreadyStarted  = errors.New("worker pool already started")
)

// HandlerFunc adapts a function to core.TaskHandler.
type HandlerFunc func(ctx context.Context, task core.Task)

// Process calls f.
func (f HandlerFunc) Process(ctx context.Context, task core.Task) { f(ctx, task) }

// Options configures a Pool.
type Options struct {
	Handler   core.TaskHandler
	Workers   int
	QueueSize int
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// Pool implements core.Dispatcher. Capacity is Workers running tasks plus QueueSize waiting
// ones; a slot is held from Reserve until its task finishes or the reservation is released.
type Pool struct {
	handler  core.TaskHandler
	workers  int
	capacity int64
	logger   *slog.Logger
	metrics  statsd.Sink

	sem   *semaphore.Weighted
	tasks chan core.Task
	stop  chan struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	running atomic.Int64
}

var _ core.Dispatcher = (*Pool)(nil)

// New constructs a Pool. Call Start before reserving.
func New(opts Options) (*Pool, error) {
	if opts.Handler == nil {
		return nil, ErrHandlerRequired
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queue := opts.QueueSize
	if queue < 0 {
		queue = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	capacity := workers + queue
	return &Pool{
		handler:  opts.Handler,
		workers:  workers,
		capacity: int64(capacity),
		logger:   logger.With("component", "workerpool"),
		metrics:  opts.Metrics,
		sem:      semaphore.NewWeighted(int64(capacity)),
		tasks:    make(chan core.Task, capacity),
		stop:     make(chan struct{}),
	}, nil
}

// MustNew constructs a Pool and panics on invalid options.
func MustNew(opts Options) *Pool {
	p, err := New(opts)
	if err != nil {
		panic(err)
	}
	return p
}

// Start launches the workers. Tasks run with a context derived from ctx.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g := &errgroup.Group{}
	for range p.workers {
		g.Go(func() error {
			p.workerLoop(runCtx)
			return nil
		})
	}

	p.started = true
	p.cancel = cancel
	p.group = g
	p.logger.InfoContext(ctx, "worker pool started", "workers", p.workers, "capacity", p.capacity)
	return nil
}

// Reserve claims a slot without blocking.
func (p *Pool) Reserve() (core.Reservation, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch {
	case !p.started:
		return nil, ErrNotStarted
	case p.closed:
		return nil, ErrShuttingDown
	case !p.sem.TryAcquire(1):
		return nil, ErrQueueFull
	}
	return &reservation{pool: p}, nil
}

// Shutdown stops accepting reservations and waits for every reserved task to finish.
// When ctx ends first the run context is canceled so remaining handlers fail their jobs,
// and Shutdown then waits for them before returning ctx's error.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.closed {
		p.closed = true
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		// All slots free means nothing is queued, running or reserved.
		_ = p.sem.Acquire(context.Background(), p.capacity)
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "shutdown deadline reached, canceling remaining tasks",
			"queued", len(p.tasks), "running", p.running.Load())
		p.cancel()
		<-drained
		err = fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}

	p.cancel()
	close(p.stop)
	if werr := p.group.Wait(); werr != nil {
		err = errors.Join(err, werr)
	}
	p.logger.InfoContext(context.WithoutCancel(ctx), "worker pool stopped")
	return err
}

// Queued returns the number of tasks waiting for a worker.
func (p *Pool) Queued() int { return len(p.tasks) }

// Running returns the number of tasks being handled.
func (p *Pool) Running() int { return int(p.running.Load()) }

func (p *Pool) workerLoop(ctx context.Context) {
	for {
		select {
		case <-p.stop:
			return
		case task := <-p.tasks:
			p.run(ctx, task)
		}
	}
}

func (p *Pool) run(ctx context.Context, task core.Task) {
	p.running.Add(1)
	metrics.EmitPoolDepth(p.metrics, len(p.tasks), int(p.running.Load()))
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "task handler panicked",
				"job_id", task.JobID, "panic", r, "stack", string(debug.Stack()))
		}
		p.running.Add(-1)
		p.sem.Release(1)
	}()

	p.handler.Process(ctx, task)
}

type reservation struct {
	pool *Pool
	once sync.Once
}

// Submit enqueues task. The channel has one buffer slot per semaphore unit, so it never blocks.
func (r *reservation) Submit(task core.Task) {
	r.once.Do(func() {
		r.pool.tasks <- task
	})
}

func (r *reservation) Release() {
	r.once.Do(func() {
		r.pool.sem.Release(1)
	})
}
