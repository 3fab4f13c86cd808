package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/target/mmk-summarizer/internal/core"
	domainjob "github.com/target/mmk-summarizer/internal/domain/job"
	apperrors "github.com/target/mmk-summarizer/internal/errors"
	"github.com/target/mmk-summarizer/internal/observability/metrics"
	"github.com/target/mmk-summarizer/internal/observability/statsd"
)

const (
	defaultFetchTimeout     = 20 * time.Second
	defaultSummarizeTimeout = 120 * time.Second
	defaultWriteTimeout     = 5 * time.Second
)

// LifecycleManagerOptions groups dependencies for LifecycleManager.
type LifecycleManagerOptions struct {
	Store            core.JobStore       // Required: shared job store
	Fetcher          core.ContentFetcher // Required: page retrieval and text extraction
	Summarizer       core.Summarizer     // Required: text summarization backend
	FetchTimeout     time.Duration       // Optional: bound on FetchAndExtract (default 20s)
	SummarizeTimeout time.Duration       // Optional: bound on Summarize (default 120s)
	WriteTimeout     time.Duration       // Optional: bound on each store write (default 5s)
	Logger           *slog.Logger        // Optional: structured logger
	Metrics          statsd.Sink         // Optional: metrics sink (StatsD-compatible)
	Now              func() time.Time    // Optional: clock, defaults to time.Now
}

// LifecycleManager drives one job through fetch, extract and summarize, persisting
// each checkpoint, and always leaves the job SUCCESS or FAILED.
type LifecycleManager struct {
	store            core.JobStore
	fetcher          core.ContentFetcher
	summarizer       core.Summarizer
	fetchTimeout     time.Duration
	summarizeTimeout time.Duration
	writeTimeout     time.Duration
	logger           *slog.Logger
	metrics          statsd.Sink
	now              func() time.Time
}

var _ core.TaskHandler = (*LifecycleManager)(nil)

// NewLifecycleManager constructs a new LifecycleManager.
func NewLifecycleManager(opts LifecycleManagerOptions) (*LifecycleManager, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("ContentFetcher is required")
	}
	if opts.Summarizer == nil {
		return nil, errors.New("Summarizer is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LifecycleManager{
		store:            opts.Store,
		fetcher:          opts.Fetcher,
		summarizer:       opts.Summarizer,
		fetchTimeout:     durationOr(opts.FetchTimeout, defaultFetchTimeout),
		summarizeTimeout: durationOr(opts.SummarizeTimeout, defaultSummarizeTimeout),
		writeTimeout:     durationOr(opts.WriteTimeout, defaultWriteTimeout),
		logger:           logger.With("component", "lifecycle"),
		metrics:          opts.Metrics,
		now:              now,
	}, nil
}

// MustNewLifecycleManager constructs a new LifecycleManager and panics on error.
func MustNewLifecycleManager(opts LifecycleManagerOptions) *LifecycleManager {
	m, err := NewLifecycleManager(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create LifecycleManager: %v", err))
	}
	return m
}

// Process runs the pipeline for task. It never returns an error: every failure becomes
// the job's FAILED record, and a failure to write even that is logged.
func (m *LifecycleManager) Process(ctx context.Context, task core.Task) {
	start := time.Now()
	logger := m.logger.With("job_id", task.JobID)
	logger.DebugContext(ctx, "job started", "url", task.URL)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "job panicked", "panic", r, "stack", string(debug.Stack()))
			cause := domainjob.NewStageError(domainjob.StageInternal, fmt.Errorf("panic: %v", r))
			if ferr := m.finish(ctx, task.JobID, domainjob.Fail(cause), domainjob.StageInternal, start); ferr != nil {
				logger.ErrorContext(ctx, "failed to record job failure, job left pending", "error", ferr)
			}
		}
	}()

	summary, err := m.pipeline(ctx, task)
	if err == nil {
		var done domainjob.Transition
		done, err = domainjob.Succeed(summary)
		if err == nil {
			err = m.finish(ctx, task.JobID, done, "", start)
			if err == nil {
				logger.InfoContext(ctx, "job succeeded", "duration", time.Since(start))
				return
			}
		} else {
			err = domainjob.NewStageError(domainjob.StageSummarize, err)
		}
	}

	if apperrors.IsConflict(err) || apperrors.IsNotFound(err) {
		// Finalized elsewhere or expired; there is nothing left to write.
		logger.WarnContext(ctx, "job no longer pending, dropping", "error", err)
		return
	}
	stage := domainjob.StageOf(err)
	if ferr := m.finish(ctx, task.JobID, domainjob.Fail(err), stage, start); ferr != nil {
		logger.ErrorContext(ctx, "failed to record job failure, job left pending",
			"cause", err, "error", ferr)
		return
	}
	logger.InfoContext(ctx, "job failed",
		"stage", stage,
		"error", err,
		"duration", time.Since(start))
}

// pipeline runs the stages and advances progress after each one. It returns the summary
// or a stage-tagged error.
func (m *LifecycleManager) pipeline(ctx context.Context, task core.Task) (string, error) {
	if err := m.claim(ctx, task.JobID); err != nil {
		return "", err
	}

	var text string
	err := m.stage(ctx, domainjob.StageFetch, m.fetchTimeout, func(ctx context.Context) error {
		var err error
		text, err = m.fetcher.FetchAndExtract(ctx, task.URL)
		return err
	})
	if err != nil {
		return "", err
	}
	if err := m.advance(ctx, task.JobID, domainjob.Fetched()); err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domainjob.NewStageError(domainjob.StageExtract, domainjob.ErrNoReadableContent)
	}
	if err := m.advance(ctx, task.JobID, domainjob.Extracted()); err != nil {
		return "", err
	}

	var summary string
	err = m.stage(ctx, domainjob.StageSummarize, m.summarizeTimeout, func(ctx context.Context) error {
		var err error
		summary, err = m.summarizer.Summarize(ctx, text)
		if err == nil && strings.TrimSpace(summary) == "" {
			err = domainjob.ErrEmptySummary
		}
		return err
	})
	if err != nil {
		return "", err
	}
	if err := m.advance(ctx, task.JobID, domainjob.Summarized()); err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

// stage runs fn under its own timeout, converting panics into errors and tagging the
// result with the stage. Cancellation of the parent context is reported as canceled.
func (m *LifecycleManager) stage(
	ctx context.Context,
	stage domainjob.Stage,
	timeout time.Duration,
	fn func(context.Context) error,
) (err error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "stage panicked",
				"stage", stage, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}

		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.EmitStage(m.metrics, string(stage), result, time.Since(start))

		if err == nil {
			return
		}
		switch {
		case ctx.Err() != nil:
			err = domainjob.NewStageError(domainjob.StageCanceled,
				fmt.Errorf("%s interrupted: %w", stage, err))
		case errors.Is(stageCtx.Err(), context.DeadlineExceeded):
			err = domainjob.NewStageError(stage, fmt.Errorf("timed out after %s: %w", timeout, err))
		default:
			err = domainjob.NewStageError(stage, err)
		}
	}()

	return fn(stageCtx)
}

// claim restarts the job's age before any work is done. The store refuses the write
// for a record that is already terminal or gone, so such a job is never fetched.
func (m *LifecycleManager) claim(ctx context.Context, id string) error {
	writeCtx, cancel := context.WithTimeout(ctx, m.writeTimeout)
	defer cancel()

	err := m.store.WriteFields(writeCtx, id, domainjob.Claimed(m.now()))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return domainjob.NewStageError(domainjob.StageCanceled, fmt.Errorf("claim interrupted: %w", err))
	}
	return domainjob.NewStageError(domainjob.StageStore, fmt.Errorf("claim job: %w", err))
}

// advance persists a progress checkpoint.
func (m *LifecycleManager) advance(ctx context.Context, id string, tr domainjob.Transition) error {
	writeCtx, cancel := context.WithTimeout(ctx, m.writeTimeout)
	defer cancel()

	err := m.store.WriteFields(writeCtx, id, tr.Fields(m.now()))
	m.record(tr, "", err, 0)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return domainjob.NewStageError(domainjob.StageCanceled,
			fmt.Errorf("%s checkpoint interrupted: %w", tr.Name(), err))
	}
	return domainjob.NewStageError(domainjob.StageStore, fmt.Errorf("write %s checkpoint: %w", tr.Name(), err))
}

// finish persists a terminal transition on a context detached from cancellation, so a
// job interrupted by shutdown still records its outcome.
func (m *LifecycleManager) finish(
	ctx context.Context,
	id string,
	tr domainjob.Transition,
	stage domainjob.Stage,
	start time.Time,
) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.writeTimeout)
	defer cancel()

	err := m.store.WriteFields(writeCtx, id, tr.Fields(m.now()))
	m.record(tr, stage, err, time.Since(start))
	if err != nil {
		return domainjob.NewStageError(domainjob.StageStore, fmt.Errorf("write %s record: %w", tr.Name(), err))
	}
	return nil
}

func (m *LifecycleManager) record(tr domainjob.Transition, stage domainjob.Stage, err error, d time.Duration) {
	in := metrics.JobMetric{
		Transition: tr.Name(),
		Result:     metrics.ResultSuccess,
		Stage:      string(stage),
		Duration:   d,
	}
	if err != nil {
		in.Result = metrics.ResultError
		in.Err = err
	}
	metrics.EmitJobLifecycle(m.metrics, in)
}

func durationOr(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
