package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-summarizer/internal/domain/job"
	"github.com/target/mmk-summarizer/internal/domain/model"
	apperrors "github.com/target/mmk-summarizer/internal/errors"
)

func TestMemoryJobStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()
	j := model.NewPendingJob("a7c0f1de-8a0c-4c65-9d34-2a86a79dfb1e", "n", "https://example.com/", time.Now())

	require.NoError(t, s.Create(ctx, j))
	assert.True(t, apperrors.IsConflict(s.Create(ctx, j)))

	require.NoError(t, s.WriteFields(ctx, j.ID, job.Extracted().Fields(time.Now())))
	assert.True(t, apperrors.IsConflict(s.WriteFields(ctx, j.ID, job.Fetched().Fields(time.Now()))))

	require.NoError(t, s.WriteFields(ctx, j.ID, job.Fail(assert.AnError).Fields(time.Now())))
	assert.True(t, apperrors.IsConflict(s.WriteFields(ctx, j.ID, job.Fail(assert.AnError).Fields(time.Now()))))

	got, err := s.ReadRecord(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorDetail)

	assert.Equal(t, []model.Progress{0, 0.5, 1}, s.ProgressHistory(j.ID))
	assert.Len(t, s.Writes(j.ID), 3)

	_, err = s.ReadRecord(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(s.WriteFields(ctx, "missing", job.Fetched().Fields(time.Now()))))

	var seen []string
	require.NoError(t, s.Scan(ctx, func(j *model.Job) bool {
		seen = append(seen, j.ID)
		return true
	}))
	assert.Equal(t, []string{j.ID}, seen)
}
