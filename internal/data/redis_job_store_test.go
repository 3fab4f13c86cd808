package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-summarizer/internal/domain/job"
	"github.com/target/mmk-summarizer/internal/domain/model"
	apperrors "github.com/target/mmk-summarizer/internal/errors"
	"github.com/target/mmk-summarizer/internal/testutil"
)

func setupStore(t *testing.T, ttl time.Duration) (*RedisJobStore, *redis.Client) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisJobStore(RedisJobStoreOptions{Client: client, RecordTTL: ttl})
	require.NoError(t, err)
	return store, client
}

func TestNewRedisJobStore(t *testing.T) {
	_, err := NewRedisJobStore(RedisJobStoreOptions{})
	require.ErrorIs(t, err, ErrRedisClientRequired)

	assert.Panics(t, func() { MustNewRedisJobStore(RedisJobStoreOptions{}) })

	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()
	s := MustNewRedisJobStore(RedisJobStoreOptions{Client: client, RecordTTL: -time.Second})
	assert.Equal(t, DefaultKeyPrefix, s.prefix)
	assert.Zero(t, s.ttl)
	assert.Equal(t, "document:abc", s.key("abc"))
}

func TestRedisJobStore_CreateAndRead(t *testing.T) {
	store, client := setupStore(t, 0)
	ctx := context.Background()

	j := testutil.NewPendingJob("example", "https://example.com/")
	require.NoError(t, store.Create(ctx, j))

	t.Run("record is visible with empty summary", func(t *testing.T) {
		raw := client.HGetAll(ctx, store.key(j.ID)).Val()
		assert.Equal(t, "PENDING", raw[model.FieldStatus])
		assert.Equal(t, "", raw[model.FieldSummary])
		assert.Equal(t, "https://example.com/", raw[model.FieldURL])
		assert.Equal(t, time.Duration(-1), client.TTL(ctx, store.key(j.ID)).Val())

		got, err := store.ReadRecord(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, j.ID, got.ID)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Equal(t, model.ProgressQueued, got.Progress)
		assert.Nil(t, got.Summary)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		err := store.Create(ctx, j)
		require.ErrorIs(t, err, ErrJobExists)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := store.ReadRecord(ctx, "00000000-0000-4000-8000-000000000000")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestRedisJobStore_RecordTTL(t *testing.T) {
	store, client := setupStore(t, time.Hour)
	ctx := context.Background()

	j := testutil.NewPendingJob("ttl", "https://example.com/")
	require.NoError(t, store.Create(ctx, j))

	ttl := client.TTL(ctx, store.key(j.ID)).Val()
	assert.True(t, ttl > 0 && ttl <= time.Hour)
}

func TestRedisJobStore_WriteFields(t *testing.T) {
	store, _ := setupStore(t, 0)
	ctx := context.Background()
	now := time.Now()

	j := testutil.NewPendingJob("write", "https://example.com/")
	require.NoError(t, store.Create(ctx, j))

	require.NoError(t, store.WriteFields(ctx, j.ID, job.Fetched().Fields(now)))
	require.NoError(t, store.WriteFields(ctx, j.ID, job.Extracted().Fields(now)))

	err := store.WriteFields(ctx, j.ID, job.Fetched().Fields(now))
	require.ErrorIs(t, err, ErrProgressRegression)

	done, err := job.Succeed("A summary.")
	require.NoError(t, err)
	require.NoError(t, store.WriteFields(ctx, j.ID, done.Fields(now)))

	got, err := store.ReadRecord(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, got.Status)
	assert.Equal(t, model.ProgressDone, got.Progress)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "A summary.", *got.Summary)

	t.Run("terminal record is write-once", func(t *testing.T) {
		err := store.WriteFields(ctx, j.ID, job.Fail(assert.AnError).Fields(now))
		require.ErrorIs(t, err, ErrJobFinalized)

		again, err := store.ReadRecord(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusSuccess, again.Status)
		assert.Nil(t, again.ErrorDetail)
	})

	t.Run("missing record is not created", func(t *testing.T) {
		id := "00000000-0000-4000-8000-000000000001"
		err := store.WriteFields(ctx, id, job.Fetched().Fields(now))
		require.ErrorIs(t, err, ErrJobNotFound)

		_, err = store.ReadRecord(ctx, id)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestRedisJobStore_ConcurrentTerminalWrites(t *testing.T) {
	store, _ := setupStore(t, 0)
	ctx := context.Background()

	j := testutil.NewPendingJob("race", "https://example.com/")
	require.NoError(t, store.Create(ctx, j))

	ok, err := job.Succeed("winner?")
	require.NoError(t, err)
	writes := []job.Transition{ok, job.Fail(assert.AnError)}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(tr job.Transition) {
			defer wg.Done()
			if store.WriteFields(ctx, j.ID, tr.Fields(time.Now())) == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(writes[i%2])
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
}

func TestRedisJobStore_Scan(t *testing.T) {
	store, client := setupStore(t, 0)
	ctx := context.Background()

	ids := map[string]bool{}
	for i := 0; i < 5; i++ {
		j := testutil.NewPendingJob("scan", "https://example.com/")
		require.NoError(t, store.Create(ctx, j))
		ids[j.ID] = true
	}
	require.NoError(t, client.Set(ctx, "unrelated:key", "x", 0).Err())

	seen := map[string]bool{}
	require.NoError(t, store.Scan(ctx, func(j *model.Job) bool {
		seen[j.ID] = true
		return true
	}))
	assert.Equal(t, ids, seen)

	count := 0
	require.NoError(t, store.Scan(ctx, func(*model.Job) bool {
		count++
		return false
	}))
	assert.Equal(t, 1, count)
}

func TestRedisJobStore_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()
	store := MustNewRedisJobStore(RedisJobStoreOptions{Client: client})

	ctx := context.Background()
	_, err := store.ReadRecord(ctx, "00000000-0000-4000-8000-000000000000")
	assert.True(t, apperrors.IsUnavailable(err))
	assert.True(t, apperrors.IsUnavailable(store.Health(ctx)))
	assert.True(t, apperrors.IsUnavailable(store.Create(ctx, testutil.NewPendingJob("x", "https://example.com/"))))
}
