// Package job holds the summarization state machine.
//
// A job moves PENDING@0.0 -> 0.25 (fetched) -> 0.50 (extracted) -> 0.75 (summarized)
// -> SUCCESS@1.0, and any stage may instead move it to FAILED@1.0. Transitions are
// values produced only by the constructors in this file, so a record such as
// SUCCESS without a summary cannot be expressed.
package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/target/mmk-summarizer/internal/domain/model"
)

// Stage names a pipeline stage.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageExtract   Stage = "extract"
	StageSummarize Stage = "summarize"
	StageStore     Stage = "store"
	StageCanceled  Stage = "canceled"
	StageInternal  Stage = "internal"
	StageStale     Stage = "stale"
)

var (
	// ErrNoReadableContent is returned when extraction yields no text.
	ErrNoReadableContent = errors.New("no readable content")
	// ErrEmptySummary is returned when the summarizer produces no text.
	ErrEmptySummary = errors.New("empty summary")
	// ErrIllegalTransition is returned when a transition does not follow the current record.
	ErrIllegalTransition = errors.New("illegal transition")
)

// StageError records which stage failed and why.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with its stage. A nil err yields nil and an error that
// already carries a stage is returned unchanged.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded in err, or StageInternal.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageInternal
}

// Transition is one persisted step of the state machine.
type Transition struct {
	status   model.JobStatus
	progress model.Progress
	summary  string
	detail   string
}

func advance(p model.Progress) Transition {
	return Transition{status: model.JobStatusPending, progress: p}
}

// Fetched marks content as retrieved.
func Fetched() Transition { return advance(model.ProgressFetched) }

// Extracted marks readable text as available.
func Extracted() Transition { return advance(model.ProgressExtracted) }

// Summarized marks the summarizer call as returned.
func Summarized() Transition { return advance(model.ProgressSummarized) }

// Claimed returns the fields written when a worker picks up a pending job. Only
// updated_at changes, so the stored status and progress stay as they are.
func Claimed(now time.Time) model.Fields {
	return model.Fields{model.FieldUpdatedAt: now.UTC().Format(time.RFC3339Nano)}
}

// Succeed completes the job with summary. An empty summary cannot succeed.
func Succeed(summary string) (Transition, error) {
	if summary == "" {
		return Transition{}, ErrEmptySummary
	}
	return Transition{status: model.JobStatusSuccess, progress: model.ProgressDone, summary: summary}, nil
}

// Fail completes the job with cause as its error detail.
func Fail(cause error) Transition {
	detail := "unknown failure"
	if cause != nil {
		detail = cause.Error()
	}
	return Transition{status: model.JobStatusFailed, progress: model.ProgressDone, detail: detail}
}

// Status returns the status the transition writes.
func (t Transition) Status() model.JobStatus { return t.status }

// Progress returns the progress the transition writes.
func (t Transition) Progress() model.Progress { return t.progress }

// Terminal reports whether the transition ends the job.
func (t Transition) Terminal() bool { return t.status.Terminal() }

// Detail returns the error detail of a failing transition.
func (t Transition) Detail() string { return t.detail }

// Name is a short label used for logs and metrics.
func (t Transition) Name() string {
	switch {
	case t.status == model.JobStatusSuccess:
		return "succeeded"
	case t.status == model.JobStatusFailed:
		return "failed"
	case t.progress == model.ProgressFetched:
		return "fetched"
	case t.progress == model.ProgressExtracted:
		return "extracted"
	case t.progress == model.ProgressSummarized:
		return "summarized"
	default:
		return "unknown"
	}
}

// CheckFrom verifies the transition may be applied to cur: the record must still be
// pending and progress must not go backwards.
func (t Transition) CheckFrom(cur *model.Job) error {
	if cur == nil {
		return fmt.Errorf("%w: no current record", ErrIllegalTransition)
	}
	if cur.Status.Terminal() {
		return fmt.Errorf("%w: job %s already %s", ErrIllegalTransition, cur.ID, cur.Status)
	}
	if t.progress < cur.Progress {
		return fmt.Errorf("%w: progress %v after %v", ErrIllegalTransition, t.progress, cur.Progress)
	}
	return nil
}

// Fields returns the fields written for the transition. Terminal transitions write
// status, progress, summary and error detail together so no reader sees a partial outcome.
func (t Transition) Fields(now time.Time) model.Fields {
	f := model.Fields{
		model.FieldProgress:  t.progress.String(),
		model.FieldUpdatedAt: now.UTC().Format(time.RFC3339Nano),
	}
	if !t.Terminal() {
		return f
	}
	f[model.FieldStatus] = string(t.status)
	f[model.FieldSummary] = t.summary
	f[model.FieldErrorDetail] = t.detail
	return f
}
