package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-summarizer/internal/core"
	"github.com/target/mmk-summarizer/internal/domain/model"
	apperrors "github.com/target/mmk-summarizer/internal/errors"
	"github.com/target/mmk-summarizer/internal/observability/metrics"
	"github.com/target/mmk-summarizer/internal/observability/statsd"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Store      core.JobStore    // Required: shared job store
	Dispatcher core.Dispatcher  // Required: background task dispatcher
	Logger     *slog.Logger     // Optional: structured logger
	Metrics    statsd.Sink      // Optional: metrics sink (StatsD-compatible)
	Now        func() time.Time // Optional: clock, defaults to time.Now
	NewID      func() string    // Optional: id generator, defaults to random UUIDs
}

// JobService is the submission and query surface for summarization jobs.
//
// This service manages:
// - Validating and normalizing submissions.
// - Reserving worker capacity before anything is persisted.
// - Writing the initial PENDING record and handing the job to a worker.
// - Reading job records back for pollers.
type JobService struct {
	store      core.JobStore
	dispatcher core.Dispatcher
	logger     *slog.Logger
	metrics    statsd.Sink
	now        func() time.Time
	newID      func() string
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("Dispatcher is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
		newID:      newID,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create validates req, persists a PENDING record and schedules its pipeline.
// It returns as soon as the job is queued. Invalid input and a full worker pool
// are rejected before anything is written.
func (s *JobService) Create(ctx context.Context, req model.CreateJobRequest) (*model.Job, error) {
	in, err := req.Normalize()
	if err != nil {
		metrics.EmitSubmission(s.metrics, metrics.ResultError, err)
		return nil, err
	}

	res, err := s.dispatcher.Reserve()
	if err != nil {
		metrics.EmitSubmission(s.metrics, metrics.ResultError, err)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "job rejected, no worker capacity", "error", err)
		}
		return nil, fmt.Errorf("reserve worker: %w", err)
	}

	job := model.NewPendingJob(s.newID(), in.Name, in.URL, s.now().UTC())
	if err := s.store.Create(ctx, job); err != nil {
		res.Release()
		metrics.EmitSubmission(s.metrics, metrics.ResultError, err)
		return nil, fmt.Errorf("create job: %w", err)
	}

	res.Submit(core.Task{JobID: job.ID, URL: job.URL})
	metrics.EmitSubmission(s.metrics, metrics.ResultSuccess, nil)

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job created", "id", job.ID, "url", job.URL)
	}
	return job, nil
}

// Get returns the stored record for id. Ids that could never have been issued
// are reported as not found without touching the store.
func (s *JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if !model.ValidJobID(id) {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}

	job, err := s.store.ReadRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// JobListOptions filters List.
type JobListOptions struct {
	Status model.JobStatus // Optional: only records with this status
	Limit  int             // Optional: stop after this many records
}

// List returns stored records matching opts in store iteration order.
func (s *JobService) List(ctx context.Context, opts JobListOptions) ([]*model.Job, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, apperrors.ValidationField(model.FieldStatus, fmt.Sprintf("unknown status %q", opts.Status))
	}

	var out []*model.Job
	err := s.store.Scan(ctx, func(job *model.Job) bool {
		if opts.Status != "" && job.Status != opts.Status {
			return true
		}
		out = append(out, job)
		return opts.Limit <= 0 || len(out) < opts.Limit
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return out, nil
}
