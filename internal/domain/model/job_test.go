package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/target/mmk-summarizer/internal/errors"
)

func TestJobStatus_ValidAndTerminal(t *testing.T) {
	assert.True(t, JobStatusPending.Valid())
	assert.True(t, JobStatusSuccess.Valid())
	assert.True(t, JobStatusFailed.Valid())
	assert.False(t, JobStatus("pending").Valid())

	assert.False(t, JobStatusPending.Terminal())
	assert.True(t, JobStatusSuccess.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestProgress_RoundTripCheckpoints(t *testing.T) {
	for _, p := range []Progress{ProgressQueued, ProgressFetched, ProgressExtracted, ProgressSummarized, ProgressDone} {
		got, err := ParseProgress(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	assert.Equal(t, "0.25", ProgressFetched.String())
	assert.Equal(t, "1", ProgressDone.String())
}

func TestParseProgress_Rejects(t *testing.T) {
	_, err := ParseProgress("abc")
	require.Error(t, err)
	_, err = ParseProgress("1.5")
	require.Error(t, err)

	p, err := ParseProgress("")
	require.NoError(t, err)
	assert.Equal(t, ProgressQueued, p)
}

func TestJobFromFields_PendingHidesSummary(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	job := NewPendingJob("7f1d2c1e-5b8a-4c55-9f0e-3c1f8f7b6a10", "Example", "https://example.com/", now)

	fields := job.Fields()
	assert.Equal(t, "PENDING", fields[FieldStatus])
	assert.Equal(t, "0", fields[FieldProgress])
	assert.Equal(t, "", fields[FieldSummary])
	assert.Equal(t, "https://example.com/", fields[FieldURL])

	decoded, err := JobFromFields(job.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, job.ID, decoded.ID)
	assert.Equal(t, JobStatusPending, decoded.Status)
	assert.Equal(t, ProgressQueued, decoded.Progress)
	assert.Nil(t, decoded.Summary)
	assert.Nil(t, decoded.ErrorDetail)
	assert.True(t, decoded.CreatedAt.Equal(now))
}

func TestJobFromFields_SummaryOnlyOnSuccess(t *testing.T) {
	fields := Fields{
		FieldStatus:      string(JobStatusFailed),
		FieldProgress:    "1",
		FieldSummary:     "stale text",
		FieldErrorDetail: "fetch: timeout",
	}
	job, err := JobFromFields("id-1", fields)
	require.NoError(t, err)
	assert.Nil(t, job.Summary)
	require.NotNil(t, job.ErrorDetail)
	assert.Equal(t, "fetch: timeout", *job.ErrorDetail)

	fields[FieldStatus] = string(JobStatusSuccess)
	job, err = JobFromFields("id-1", fields)
	require.NoError(t, err)
	require.NotNil(t, job.Summary)
	assert.Equal(t, "stale text", *job.Summary)
	assert.Nil(t, job.ErrorDetail)
}

func TestJobFromFields_InvalidStatus(t *testing.T) {
	_, err := JobFromFields("id-1", Fields{FieldStatus: "RUNNING"})
	require.Error(t, err)
}

func TestCreateJobRequest_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		req       CreateJobRequest
		wantURL   string
		wantName  string
		wantField string
	}{
		{name: "adds trailing slash", req: CreateJobRequest{Name: "Example", URL: "https://example.com"}, wantURL: "https://example.com/", wantName: "Example"},
		{name: "keeps path", req: CreateJobRequest{Name: " Doc ", URL: "http://Example.com/a/b?x=1"}, wantURL: "http://example.com/a/b?x=1", wantName: "Doc"},
		{name: "uppercase scheme", req: CreateJobRequest{Name: "Doc", URL: "HTTPS://example.com/"}, wantURL: "https://example.com/", wantName: "Doc"},
		{name: "not a url", req: CreateJobRequest{Name: "Doc", URL: "not-a-url"}, wantField: FieldURL},
		{name: "ftp scheme", req: CreateJobRequest{Name: "Doc", URL: "ftp://example.com/file"}, wantField: FieldURL},
		{name: "missing host", req: CreateJobRequest{Name: "Doc", URL: "https:///path"}, wantField: FieldURL},
		{name: "credentials", req: CreateJobRequest{Name: "Doc", URL: "https://user:pw@example.com/"}, wantField: FieldURL},
		{name: "empty url", req: CreateJobRequest{Name: "Doc", URL: "  "}, wantField: FieldURL},
		{name: "empty name", req: CreateJobRequest{Name: "   ", URL: "https://example.com"}, wantField: FieldName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Normalize()
			if tt.wantField != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidation(err))
				assert.Equal(t, tt.wantField, apperrors.GetField(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, got.URL)
			assert.Equal(t, tt.wantName, got.Name)
		})
	}
}

func TestValidJobID(t *testing.T) {
	assert.True(t, ValidJobID("7f1d2c1e-5b8a-4c55-9f0e-3c1f8f7b6a10"))
	assert.False(t, ValidJobID("not-a-uuid"))
	assert.False(t, ValidJobID("7f1d2c1e5b8a4c559f0e3c1f8f7b6a10"))
	assert.False(t, ValidJobID(""))
}
