// Package core defines the ports between the summarization services and their adapters.
package core

import (
	"context"

	"github.com/target/mmk-summarizer/internal/domain/model"
)

// JobStore persists job records in the shared store.
// Every method is atomic with respect to concurrent readers of the same record.
type JobStore interface {
	// Create writes the full initial record. It fails with a conflict if the id already exists.
	Create(ctx context.Context, job *model.Job) error

	// WriteFields merges fields into an existing record in one atomic update.
	// It fails with not found for a missing record and with a conflict when the record
	// is already terminal.
	WriteFields(ctx context.Context, id string, fields model.Fields) error

	// ReadRecord returns the current record as stored.
	ReadRecord(ctx context.Context, id string) (*model.Job, error)

	// Scan calls fn for every stored record until fn returns false or an error occurs.
	Scan(ctx context.Context, fn func(*model.Job) bool) error

	// Health checks connectivity to the store.
	Health(ctx context.Context) error
}

// ContentFetcher retrieves a URL and returns its readable text.
// A deadline on ctx bounds the whole call.
type ContentFetcher interface {
	FetchAndExtract(ctx context.Context, url string) (string, error)
}

// Summarizer turns readable text into a summary.
// A deadline on ctx bounds the whole call.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Task is the unit of background work for one job.
type Task struct {
	JobID string
	URL   string
}

// Reservation is a claimed slot of worker capacity.
// Exactly one of Submit or Release must be called.
type Reservation interface {
	Submit(task Task)
	Release()
}

// Dispatcher hands tasks to background workers.
type Dispatcher interface {
	// Reserve claims capacity for one task without blocking. It fails with a busy
	// error when no capacity is free or the dispatcher is shutting down.
	Reserve() (Reservation, error)
}

// TaskHandler runs one task to completion. It must leave the job terminal.
type TaskHandler interface {
	Process(ctx context.Context, task Task)
}
