// Package model defines the core data types of the summarization job system.
package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/target/mmk-summarizer/internal/errors"
)

// JobStatus represents the lifecycle status of a summarization job.
type JobStatus string

const (
	// JobStatusPending indicates the job is queued or its pipeline is still running.
	JobStatusPending JobStatus = "PENDING"
	// JobStatusSuccess indicates a summary was produced and stored.
	JobStatusSuccess JobStatus = "SUCCESS"
	// JobStatusFailed indicates a pipeline stage failed; the cause is kept in ErrorDetail.
	JobStatusFailed JobStatus = "FAILED"
)

// Valid returns true if the JobStatus is one of the three known values.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusSuccess || s == JobStatusFailed
}

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// Progress is the fraction of the pipeline completed, in [0, 1].
type Progress float64

// Progress checkpoints are the only values ever persisted.
const (
	ProgressQueued     Progress = 0.0
	ProgressFetched    Progress = 0.25
	ProgressExtracted  Progress = 0.50
	ProgressSummarized Progress = 0.75
	ProgressDone       Progress = 1.0
)

// String encodes the progress the way it is stored.
func (p Progress) String() string {
	return strconv.FormatFloat(float64(p), 'f', -1, 64)
}

// ParseProgress decodes a stored progress value.
func ParseProgress(s string) (Progress, error) {
	if s == "" {
		return ProgressQueued, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse progress %q: %w", s, err)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("progress %v out of range", v)
	}
	return Progress(v), nil
}

// Hash field names of a stored job record.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldURL         = "URL"
	FieldStatus      = "status"
	FieldProgress    = "progress"
	FieldSummary     = "summary"
	FieldErrorDetail = "error_detail"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
)

// Fields is the flat field set of a stored job record.
type Fields map[string]string

// Job is the sole persisted entity: one submitted (name, url) and its summarization state.
type Job struct {
	ID          string
	Name        string
	URL         string
	Status      JobStatus
	Progress    Progress
	Summary     *string
	ErrorDetail *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPendingJob builds the initial record for a freshly submitted job.
func NewPendingJob(id, name, rawURL string, now time.Time) *Job {
	return &Job{
		ID:        id,
		Name:      name,
		URL:       rawURL,
		Status:    JobStatusPending,
		Progress:  ProgressQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Fields encodes the job as a stored field set. Absent summary and error detail are empty strings.
func (j *Job) Fields() Fields {
	f := Fields{
		FieldID:          j.ID,
		FieldName:        j.Name,
		FieldURL:         j.URL,
		FieldStatus:      string(j.Status),
		FieldProgress:    j.Progress.String(),
		FieldSummary:     "",
		FieldErrorDetail: "",
		FieldCreatedAt:   formatTime(j.CreatedAt),
		FieldUpdatedAt:   formatTime(j.UpdatedAt),
	}
	if j.Summary != nil {
		f[FieldSummary] = *j.Summary
	}
	if j.ErrorDetail != nil {
		f[FieldErrorDetail] = *j.ErrorDetail
	}
	return f
}

// JobFromFields decodes a stored field set. The summary is only surfaced for SUCCESS
// and the error detail only for FAILED.
func JobFromFields(id string, f Fields) (*Job, error) {
	status := JobStatus(f[FieldStatus])
	if !status.Valid() {
		return nil, fmt.Errorf("job %s: invalid status %q", id, f[FieldStatus])
	}
	progress, err := ParseProgress(f[FieldProgress])
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}

	job := &Job{
		ID:        id,
		Name:      f[FieldName],
		URL:       f[FieldURL],
		Status:    status,
		Progress:  progress,
		CreatedAt: parseTime(f[FieldCreatedAt]),
		UpdatedAt: parseTime(f[FieldUpdatedAt]),
	}
	if v := f[FieldID]; v != "" {
		job.ID = v
	}
	if s := f[FieldSummary]; s != "" && status == JobStatusSuccess {
		job.Summary = &s
	}
	if d := f[FieldErrorDetail]; d != "" && status == JobStatusFailed {
		job.ErrorDetail = &d
	}
	return job, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Input limits for job submission.
const (
	MaxNameLength = 256
	MaxURLLength  = 2048
)

// CreateJobRequest represents a request to summarize a URL.
type CreateJobRequest struct {
	Name string `json:"name"`
	URL  string `json:"URL"`
}

// Normalize validates the request and returns a copy with a trimmed name and canonical URL.
func (r *CreateJobRequest) Normalize() (CreateJobRequest, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return CreateJobRequest{}, apperrors.ValidationField(FieldName, "name is required")
	}
	if len(name) > MaxNameLength {
		return CreateJobRequest{}, apperrors.ValidationField(
			FieldName,
			fmt.Sprintf("name must be at most %d characters", MaxNameLength),
		)
	}

	normalized, err := NormalizeURL(r.URL)
	if err != nil {
		return CreateJobRequest{}, err
	}
	return CreateJobRequest{Name: name, URL: normalized}, nil
}

// NormalizeURL accepts only absolute http(s) URLs with a host. An empty path becomes "/".
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.ValidationField(FieldURL, "URL is required")
	}
	if len(raw) > MaxURLLength {
		return "", apperrors.ValidationField(FieldURL, fmt.Sprintf("URL must be at most %d characters", MaxURLLength))
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", apperrors.ValidationField(FieldURL, "URL is not a valid URL")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", apperrors.ValidationField(FieldURL, "URL scheme must be http or https")
	}
	if u.Hostname() == "" {
		return "", apperrors.ValidationField(FieldURL, "URL must include a host")
	}
	if u.User != nil {
		return "", apperrors.ValidationField(FieldURL, "URL must not include credentials")
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// ValidJobID reports whether id has the shape of an identifier issued at submission.
func ValidJobID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}
