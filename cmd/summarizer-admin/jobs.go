package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/mmk-summarizer/internal/domain/model"
	"github.com/target/mmk-summarizer/internal/service"
)

const defaultCommandTimeout = 2 * time.Minute

type listOptions struct {
	Status model.JobStatus
	Limit  int
}

type failStaleOptions struct {
	OlderThan time.Duration
	Yes       bool
}

func runInspect(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: summarizer-admin inspect <job-id>")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	jobs, closeFn, err := openJobService(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeStore(cmdCtx, closeFn)

	job, err := jobs.Get(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	return printJob(cmdCtx.Out, job)
}

func runList(cmdCtx *commandContext, args []string) error {
	opts, err := parseListFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	jobs, closeFn, err := openJobService(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeStore(cmdCtx, closeFn)

	list, err := jobs.List(ctx, service.JobListOptions{Status: opts.Status, Limit: opts.Limit})
	if err != nil {
		return err
	}
	return printJobTable(cmdCtx.Out, list)
}

func runFailStale(cmdCtx *commandContext, args []string) error {
	opts, err := parseFailStaleFlags(args, cmdCtx.Config.Reaper.PendingMaxAge)
	if err != nil {
		return err
	}
	if !opts.Yes {
		return fmt.Errorf("refusing to fail PENDING jobs older than %s without --yes", opts.OlderThan)
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	store, closeFn, err := cmdCtx.OpenStore(ctx, &cmdCtx.Config, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer closeStore(cmdCtx, closeFn)

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Store:  store,
		Config: cmdCtx.Config.Reaper,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	count, err := reaper.FailStale(ctx, opts.OlderThan)
	if werr := writef(cmdCtx.Out, "failed %d stale job(s) older than %s\n", count, opts.OlderThan); werr != nil {
		err = errors.Join(err, werr)
	}
	return err
}

func openJobService(ctx context.Context, cmdCtx *commandContext) (*service.JobService, func() error, error) {
	store, closeFn, err := cmdCtx.OpenStore(ctx, &cmdCtx.Config, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	jobs, err := service.NewJobService(service.JobServiceOptions{
		Store:      store,
		Dispatcher: readOnlyDispatcher{},
		Logger:     cmdCtx.Logger,
	})
	if err != nil {
		closeStore(cmdCtx, closeFn)
		return nil, nil, err
	}
	return jobs, closeFn, nil
}

func parseListFlags(args []string) (listOptions, error) {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts   listOptions
		status string
	)
	fs.StringVar(&status, "status", "", "Only list jobs with this status (PENDING, SUCCESS, FAILED)")
	fs.IntVar(&opts.Limit, "limit", 100, "Maximum number of jobs to list (0 = no limit)")

	if err := fs.Parse(args); err != nil {
		return listOptions{}, err
	}
	if opts.Limit < 0 {
		return listOptions{}, errors.New("--limit must not be negative")
	}
	opts.Status = model.JobStatus(strings.ToUpper(strings.TrimSpace(status)))
	return opts, nil
}

func parseFailStaleFlags(args []string, defaultAge time.Duration) (failStaleOptions, error) {
	fs := flag.NewFlagSet("fail-stale", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts failStaleOptions
	fs.DurationVar(&opts.OlderThan, "older-than", defaultAge, "Fail PENDING jobs with no progress for this long")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation")

	if err := fs.Parse(args); err != nil {
		return failStaleOptions{}, err
	}
	if opts.OlderThan <= 0 {
		return failStaleOptions{}, errors.New("--older-than must be positive")
	}
	return opts, nil
}

func printJob(w io.Writer, job *model.Job) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"ID", job.ID},
		{"Name", job.Name},
		{"URL", job.URL},
		{"Status", string(job.Status)},
		{"Progress", job.Progress.String()},
		{"Created", formatTime(job.CreatedAt)},
		{"Updated", formatTime(job.UpdatedAt)},
		{"Summary", deref(job.Summary)},
		{"Error", deref(job.ErrorDetail)},
	}
	for _, row := range rows {
		if err := writef(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printJobTable(w io.Writer, jobs []*model.Job) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "ID\tSTATUS\tPROGRESS\tUPDATED\tNAME\tURL\n"); err != nil {
		return err
	}
	for _, job := range jobs {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.ID, job.Status, job.Progress, formatTime(job.UpdatedAt), job.Name, job.URL); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writef(w, "\n%d job(s)\n", len(jobs))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
