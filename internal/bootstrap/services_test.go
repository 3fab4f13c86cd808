package bootstrap

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-summarizer/config"
	"github.com/target/mmk-summarizer/internal/domain/model"
	"github.com/target/mmk-summarizer/internal/mocks/store"
	"github.com/target/mmk-summarizer/internal/testutil"
)

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 0,
		},
		{
			name:  "http only",
			modes: []config.ServiceMode{config.ServiceModeHTTP},
			want:  1,
		},
		{
			name:  "all services enabled",
			modes: []config.ServiceMode{config.ServiceModeHTTP, config.ServiceModeReaper},
			want:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelCapacity(enabled); got != tt.want {
				t.Fatalf("errorChannelCapacity(%v) = %d, want %d", tt.modes, got, tt.want)
			}
			if got := errorChannelBufferSize(enabled); got != tt.want+1 {
				t.Fatalf("errorChannelBufferSize(%v) = %d, want %d", tt.modes, got, tt.want+1)
			}
		})
	}
}

func TestGetEnabledServices(t *testing.T) {
	assert.Equal(t, []string{"http", "reaper"}, GetEnabledServices(&config.AppConfig{Services: "reaper,http"}))
	assert.Empty(t, GetEnabledServices(&config.AppConfig{Services: "bogus"}))
	assert.Empty(t, GetEnabledServices(nil))

	require.NoError(t, ValidateServiceConfig(&config.AppConfig{Services: "http"}))
	require.Error(t, ValidateServiceConfig(&config.AppConfig{Services: ""}))
	require.Error(t, ValidateServiceConfig(nil))
}

func TestValidateServiceConfig_ReaperMaxAge(t *testing.T) {
	cfg := testAppConfig("http,reaper")
	cfg.Worker = config.WorkerConfig{Concurrency: 4, QueueSize: 64, WriteTimeout: 5 * time.Second}
	minAge := cfg.MinPendingMaxAge()
	require.Greater(t, minAge, 15*time.Minute)

	cfg.Reaper.PendingMaxAge = 15 * time.Minute
	err := ValidateServiceConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REAPER_PENDING_MAX_AGE")

	cfg.Reaper.PendingMaxAge = minAge
	require.NoError(t, ValidateServiceConfig(cfg))

	// The threshold only matters when the reaper runs in this process.
	cfg.Services = "http"
	cfg.Reaper.PendingMaxAge = 5 * time.Minute
	require.NoError(t, ValidateServiceConfig(cfg))
}

type fetchFunc func(ctx context.Context, url string) (string, error)

func (f fetchFunc) FetchAndExtract(ctx context.Context, url string) (string, error) { return f(ctx, url) }

type summarizeFunc func(ctx context.Context, text string) (string, error)

func (f summarizeFunc) Summarize(ctx context.Context, text string) (string, error) { return f(ctx, text) }

func testAppConfig(services string) *config.AppConfig {
	cfg := &config.AppConfig{
		Services: services,
		HTTP:     config.HTTPConfig{Addr: "127.0.0.1:0"},
		Worker:   config.WorkerConfig{Concurrency: 2, QueueSize: 2},
		Reaper:   config.ReaperConfig{Interval: time.Minute, PendingMaxAge: time.Hour},
	}
	cfg.Sanitize()
	cfg.HTTP.Addr = "127.0.0.1:0"
	return cfg
}

func newTestServices(t *testing.T, cfg *config.AppConfig, st *store.MemoryJobStore) ServiceContainer {
	t.Helper()
	services, err := NewServices(&ServiceDeps{
		Config: cfg,
		Store:  st,
		Fetcher: fetchFunc(func(context.Context, string) (string, error) {
			return "Readable article text about the topic.", nil
		}),
		Summarizer: summarizeFunc(func(context.Context, string) (string, error) {
			return "A summary.", nil
		}),
	})
	require.NoError(t, err)
	return services
}

func TestNewServices(t *testing.T) {
	t.Run("requires config", func(t *testing.T) {
		_, err := NewServices(nil)
		require.Error(t, err)
	})

	t.Run("requires a store or redis client", func(t *testing.T) {
		_, err := NewServices(&ServiceDeps{Config: testAppConfig("http")})
		require.Error(t, err)
	})

	t.Run("wires every service", func(t *testing.T) {
		services := newTestServices(t, testAppConfig("http"), store.NewMemoryJobStore())
		assert.NotNil(t, services.Store)
		assert.NotNil(t, services.Jobs)
		assert.NotNil(t, services.Lifecycle)
		assert.NotNil(t, services.Pool)
		assert.NotNil(t, services.Reaper)
		assert.Nil(t, services.Observability.Sink())
	})
}

func TestRunServices_DrainsJobsOnShutdown(t *testing.T) {
	cfg := testAppConfig("http,reaper")
	st := store.NewMemoryJobStore()
	services := newTestServices(t, cfg, st)

	quit := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- runServices(&ServiceOrchestrationConfig{Config: cfg, Services: services}, quit)
	}()

	var job *model.Job
	require.True(t, testutil.Eventually(func() bool {
		var err error
		job, err = services.Jobs.Create(context.Background(), model.CreateJobRequest{
			Name: "example",
			URL:  "https://example.com",
		})
		return err == nil
	}, 2*time.Second, 10*time.Millisecond))

	quit <- syscall.SIGTERM
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("services did not stop")
	}

	stored, err := st.ReadRecord(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, stored.Status)
	assert.Equal(t, model.ProgressDone, stored.Progress)

	_, err = services.Jobs.Create(context.Background(), model.CreateJobRequest{Name: "late", URL: "https://example.com"})
	assert.Error(t, err, "pool must refuse work after shutdown")
}

func TestRunServices_RequiresConfig(t *testing.T) {
	require.Error(t, runServices(nil, nil))
	require.Error(t, runServices(&ServiceOrchestrationConfig{}, nil))
}
