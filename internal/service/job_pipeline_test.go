package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-summarizer/internal/adapters/workerpool"
	"github.com/target/mmk-summarizer/internal/domain/model"
	"github.com/target/mmk-summarizer/internal/mocks/store"
)

type polledJob struct {
	id       string
	url      string
	final    *model.Job
	progress []model.Progress
	err      error
}

// submitAndPoll creates a job and reads it back until it is terminal.
func submitAndPoll(ctx context.Context, svc *JobService, name, url string) polledJob {
	job, err := svc.Create(ctx, model.CreateJobRequest{Name: name, URL: url})
	if err != nil {
		return polledJob{err: err}
	}
	out := polledJob{id: job.ID, url: job.URL, progress: []model.Progress{job.Progress}}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		cur, err := svc.Get(ctx, job.ID)
		if err != nil {
			out.err = err
			return out
		}
		out.progress = append(out.progress, cur.Progress)
		if cur.Status.Terminal() {
			out.final = cur
			return out
		}
		time.Sleep(time.Millisecond)
	}
	out.err = errors.New("job did not reach a terminal status")
	return out
}

func TestJobService_ConcurrentSubmitAndPoll(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryJobStore()

	fetcher := fetchFunc(func(_ context.Context, url string) (string, error) {
		time.Sleep(2 * time.Millisecond)
		return "text of " + url, nil
	})
	summarizer := summarizeFunc(func(_ context.Context, text string) (string, error) {
		time.Sleep(2 * time.Millisecond)
		return "summary of " + text, nil
	})
	lifecycle := newTestLifecycle(t, st, fetcher, summarizer, nil)

	pool := workerpool.MustNew(workerpool.Options{Handler: lifecycle, Workers: 4, QueueSize: 16})
	require.NoError(t, pool.Start(ctx))
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	svc := MustNewJobService(JobServiceOptions{Store: st, Dispatcher: pool})

	const n = 8
	results := make([]polledJob, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = submitAndPoll(ctx, svc,
				fmt.Sprintf("article %d", i), fmt.Sprintf("https://example.com/article/%d", i))
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i, r := range results {
		require.NoError(t, r.err, "job %d", i)
		assert.False(t, seen[r.id], "duplicate id %s", r.id)
		seen[r.id] = true

		for j := 1; j < len(r.progress); j++ {
			assert.GreaterOrEqual(t, r.progress[j], r.progress[j-1], "job %s progress %v", r.id, r.progress)
		}

		require.NotNil(t, r.final)
		assert.Equal(t, model.JobStatusSuccess, r.final.Status)
		assert.Equal(t, model.ProgressDone, r.final.Progress)
		require.NotNil(t, r.final.Summary)
		assert.Equal(t, "summary of text of "+r.url, *r.final.Summary)
		assert.Nil(t, r.final.ErrorDetail)
	}
	assert.Len(t, seen, n)
	assert.Len(t, st.IDs(), n)

	require.NoError(t, pool.Shutdown(ctx))
}
