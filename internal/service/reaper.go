package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-summarizer/config"
	"github.com/target/mmk-summarizer/internal/core"
	domainjob "github.com/target/mmk-summarizer/internal/domain/job"
	"github.com/target/mmk-summarizer/internal/domain/model"
	apperrors "github.com/target/mmk-summarizer/internal/errors"
	obserrors "github.com/target/mmk-summarizer/internal/observability/errors"
	"github.com/target/mmk-summarizer/internal/observability/metrics"
	"github.com/target/mmk-summarizer/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Store   core.JobStore       // Required: shared job store
	Config  config.ReaperConfig // Required: reaper configuration
	Logger  *slog.Logger        // Optional: structured logger
	Metrics statsd.Sink         // Optional: metrics sink (StatsD-compatible)
	Now     func() time.Time    // Optional: clock, defaults to time.Now
}

// ReaperService fails jobs that stopped making progress.
//
// A job stays PENDING forever when its worker died or could not reach the store
// to record the outcome. The reaper finds PENDING records whose last update is
// older than a threshold and writes them FAILED.
type ReaperService struct {
	store   core.JobStore
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"pending_max_age", opts.Config.PendingMaxAge,
		)
	}

	return &ReaperService{
		store:   opts.Store,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// Run fails stale jobs at the configured interval until ctx is canceled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return errors.New("reaper interval must be positive")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter keeps replicas started together from scanning in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.FailStale(ctx, s.config.PendingMaxAge); err != nil && s.logger != nil && ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "reaper pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitWithJitter sleeps a random delay of up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// FailStale writes FAILED for every PENDING job not updated within maxAge and returns
// how many were failed. Jobs that finish while the pass runs are left alone.
func (s *ReaperService) FailStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, apperrors.Validation("max age must be positive")
	}
	start := time.Now()
	cutoff := s.now().Add(-maxAge)

	var stale []*model.Job
	err := s.store.Scan(ctx, func(job *model.Job) bool {
		if job.Status == model.JobStatusPending && lastActivity(job).Before(cutoff) {
			stale = append(stale, job)
		}
		return true
	})
	if err != nil {
		s.emit(0, err, time.Since(start))
		return 0, fmt.Errorf("scan jobs: %w", err)
	}

	var (
		count int64
		errs  []error
	)
	for _, job := range stale {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		failed, err := s.failJob(ctx, job)
		if err != nil {
			errs = append(errs, fmt.Errorf("fail job %s: %w", job.ID, err))
			continue
		}
		if failed {
			count++
		}
	}

	err = errors.Join(errs...)
	s.emit(count, err, time.Since(start))
	if count > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "failed stale pending jobs", "count", count, "max_age", maxAge)
	}
	return count, err
}

func (s *ReaperService) failJob(ctx context.Context, job *model.Job) (bool, error) {
	cause := domainjob.NewStageError(domainjob.StageStale,
		fmt.Errorf("no progress since %s", lastActivity(job).UTC().Format(time.RFC3339)))
	tr := domainjob.Fail(cause)
	if err := tr.CheckFrom(job); err != nil {
		return false, nil
	}

	err := s.store.WriteFields(ctx, job.ID, tr.Fields(s.now()))
	switch {
	case err == nil:
		if s.logger != nil {
			s.logger.DebugContext(ctx, "stale job failed", "job_id", job.ID, "detail", tr.Detail())
		}
		return true, nil
	case apperrors.IsConflict(err), apperrors.IsNotFound(err):
		// Finished or expired since the scan.
		return false, nil
	default:
		return false, err
	}
}

func (s *ReaperService) emit(count int64, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	tags := map[string]string{"result": metrics.ResultSuccess}
	if err != nil {
		tags["result"] = metrics.ResultError
		tags["error_class"] = obserrors.Classify(err)
	}
	s.metrics.Count("reaper.jobs_failed", count, tags)
	s.metrics.Timing("reaper.duration", elapsed, metrics.CloneTags(tags))
}

// lastActivity is the latest write time recorded on job.
func lastActivity(job *model.Job) time.Time {
	if job.UpdatedAt.After(job.CreatedAt) {
		return job.UpdatedAt
	}
	return job.CreatedAt
}
