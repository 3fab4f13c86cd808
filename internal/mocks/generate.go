// Package mocks provides mock implementations for testing the summarizer.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the core ports.
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockJobStore(ctrl)
//	store.EXPECT().ReadRecord(gomock.Any(), id).Return(job, nil)
//
// Hand-written doubles that keep state live in subpackages (see mocks/store).
package mocks

// Create, WriteFields, ReadRecord, Scan, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_store_mock.go github.com/target/mmk-summarizer/internal/core JobStore

// FetchAndExtract
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=content_fetcher_mock.go github.com/target/mmk-summarizer/internal/core ContentFetcher

// Summarize
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=summarizer_mock.go github.com/target/mmk-summarizer/internal/core Summarizer

// Reserve, and Submit/Release on the returned reservation
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=dispatcher_mock.go github.com/target/mmk-summarizer/internal/core Dispatcher,Reservation
