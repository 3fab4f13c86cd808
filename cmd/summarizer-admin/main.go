package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/target/mmk-summarizer/config"
	"github.com/target/mmk-summarizer/internal/bootstrap"
	"github.com/target/mmk-summarizer/internal/core"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

// storeOpener connects to the job store and returns a close func.
type storeOpener func(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (core.JobStore, func() error, error)

type commandContext struct {
	Ctx       context.Context
	Logger    *slog.Logger
	Config    config.AppConfig
	Out       io.Writer
	OpenStore storeOpener
}

func main() {
	logger := bootstrap.InitLogger(slog.LevelWarn)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:       context.Background(),
		Logger:    logger,
		Config:    cfg,
		Out:       os.Stdout,
		OpenStore: connectStore,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"inspect": {
			name:        "inspect",
			description: "Print the full stored record of a job, including its error detail",
			run:         runInspect,
		},
		"list": {
			name:        "list",
			description: "List stored jobs, optionally filtered by status",
			run:         runList,
		},
		"fail-stale": {
			name:        "fail-stale",
			description: "Mark PENDING jobs with no progress for longer than a threshold as FAILED",
			run:         runFailStale,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: summarizer-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-12s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
