package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/mmk-summarizer/config"
	"github.com/target/mmk-summarizer/internal/bootstrap"
	"github.com/target/mmk-summarizer/internal/core"
	"github.com/target/mmk-summarizer/internal/data"
	apperrors "github.com/target/mmk-summarizer/internal/errors"
)

func connectStore(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (core.JobStore, func() error, error) {
	client, err := bootstrap.ConnectRedis(ctx, bootstrap.RedisConnectConfig{Redis: cfg.Redis, Logger: logger})
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	store, err := data.NewRedisJobStore(data.RedisJobStoreOptions{
		Client:    client,
		KeyPrefix: cfg.Redis.KeyPrefix,
		RecordTTL: cfg.Redis.RecordTTL,
	})
	if err != nil {
		if cerr := client.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close redis client: %w", cerr))
		}
		return nil, nil, err
	}
	return store, client.Close, nil
}

// readOnlyDispatcher refuses submissions; the admin tool never schedules work.
type readOnlyDispatcher struct{}

var _ core.Dispatcher = readOnlyDispatcher{}

func (readOnlyDispatcher) Reserve() (core.Reservation, error) {
	return nil, apperrors.Busy("admin tool does not schedule jobs")
}

func closeStore(cmdCtx *commandContext, closeFn func() error) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		cmdCtx.Logger.Warn("close store failed", "error", err)
	}
}
