package data

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-summarizer/internal/domain/model"
	apperrors "github.com/target/mmk-summarizer/internal/errors"
)

// DefaultKeyPrefix is the key prefix of job records.
const DefaultKeyPrefix = "document:"

const scanBatch = 100

// Shared sentinel errors for the job store.
var (
	ErrJobNotFound         = apperrors.NotFound("job not found")
	ErrJobExists           = apperrors.Conflict("job already exists")
	ErrJobFinalized        = apperrors.Conflict("job already finalized")
	ErrProgressRegression  = apperrors.Conflict("progress must not decrease")
	ErrJobIDRequired       = apperrors.ValidationField(model.FieldID, "job id is required")
	ErrRedisClientRequired = errors.New("redis client is required")
)

// createScript writes a full record only when the key is absent.
// KEYS[1] record key, ARGV[1] ttl in ms (0 keeps the record), ARGV[2..] field/value pairs.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
local ttl = tonumber(ARGV[1])
if ttl and ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

// writeScript merges fields into a pending record.
// Returns -1 for a missing record, -2 for a terminal record, -3 when progress would go backwards.
var writeScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status == 'SUCCESS' or status == 'FAILED' then
  return -2
end
for i = 1, #ARGV, 2 do
  if ARGV[i] == 'progress' then
    local cur = tonumber(redis.call('HGET', KEYS[1], 'progress') or '0') or 0
    if tonumber(ARGV[i + 1]) < cur then
      return -3
    end
  end
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// RedisJobStoreOptions configures a RedisJobStore.
type RedisJobStoreOptions struct {
	Client    redis.UniversalClient
	KeyPrefix string
	// RecordTTL expires records after creation. Zero keeps them forever.
	RecordTTL time.Duration
}

// RedisJobStore implements core.JobStore with one Redis hash per job.
type RedisJobStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisJobStore creates a RedisJobStore.
func NewRedisJobStore(opts RedisJobStoreOptions) (*RedisJobStore, error) {
	if opts.Client == nil {
		return nil, ErrRedisClientRequired
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := opts.RecordTTL
	if ttl < 0 {
		ttl = 0
	}
	return &RedisJobStore{client: opts.Client, prefix: prefix, ttl: ttl}, nil
}

// MustNewRedisJobStore creates a RedisJobStore and panics on invalid options.
func MustNewRedisJobStore(opts RedisJobStoreOptions) *RedisJobStore {
	s, err := NewRedisJobStore(opts)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *RedisJobStore) key(id string) string { return s.prefix + id }

// Create writes the initial record of job.
func (s *RedisJobStore) Create(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}

	args := []any{s.ttl.Milliseconds()}
	args = append(args, fieldArgs(job.Fields())...)

	created, err := createScript.Run(ctx, s.client, []string{s.key(job.ID)}, args...).Int()
	if err != nil {
		return storeError(err, "create job")
	}
	if created == 0 {
		return fmt.Errorf("job %s: %w", job.ID, ErrJobExists)
	}
	return nil
}

// WriteFields merges fields into the pending record id.
func (s *RedisJobStore) WriteFields(ctx context.Context, id string, fields model.Fields) error {
	if id == "" {
		return ErrJobIDRequired
	}
	if len(fields) == 0 {
		return nil
	}

	res, err := writeScript.Run(ctx, s.client, []string{s.key(id)}, fieldArgs(fields)...).Int()
	if err != nil {
		return storeError(err, "write job fields")
	}
	switch res {
	case -1:
		return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	case -2:
		return fmt.Errorf("job %s: %w", id, ErrJobFinalized)
	case -3:
		return fmt.Errorf("job %s: %w", id, ErrProgressRegression)
	}
	return nil
}

// ReadRecord returns the stored record id.
func (s *RedisJobStore) ReadRecord(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, ErrJobIDRequired
	}

	values, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, storeError(err, "read job")
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}

	job, err := model.JobFromFields(id, values)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode job record")
	}
	return job, nil
}

// Scan visits every stored record. Records that expire or vanish mid-scan are skipped.
func (s *RedisJobStore) Scan(ctx context.Context, fn func(*model.Job) bool) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return storeError(err, "scan jobs")
	}

	for _, key := range keys {
		id := key[len(s.prefix):]
		job, err := s.ReadRecord(ctx, id)
		if apperrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		if !fn(job) {
			return nil
		}
	}
	return nil
}

// scanKeys collects matching keys from every master when running against a cluster.
func (s *RedisJobStore) scanKeys(ctx context.Context) ([]string, error) {
	match := s.prefix + "*"

	if cluster, ok := s.client.(*redis.ClusterClient); ok {
		var (
			mu   sync.Mutex
			keys []string
		)
		// ForEachMaster visits nodes concurrently.
		err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			nodeKeys, err := scanNode(ctx, node, match)
			if err != nil {
				return err
			}
			mu.Lock()
			keys = append(keys, nodeKeys...)
			mu.Unlock()
			return nil
		})
		return keys, err
	}

	return scanNode(ctx, s.client, match)
}

func scanNode(ctx context.Context, c redis.Cmdable, match string) ([]string, error) {
	var keys []string
	iter := c.Scan(ctx, 0, match, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// Health checks the health of the Redis connection.
func (s *RedisJobStore) Health(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return storeError(err, "ping store")
	}
	return nil
}

func fieldArgs(f model.Fields) []any {
	args := make([]any, 0, len(f)*2)
	for k, v := range f {
		args = append(args, k, v)
	}
	return args
}

// storeError classifies a Redis failure. Context errors keep their meaning; anything
// else means the store could not serve the call.
func storeError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.FromContext(err, op)
	}
	return apperrors.Unavailable(err, op)
}
