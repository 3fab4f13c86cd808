//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed globally via `go install` and are not tracked in go.mod
// since they are development tools, not runtime dependencies.
package tools

// Development tools (install via `go install`):
//
// mockgen - Generates the gomock doubles under internal/mocks
//   Install: go install go.uber.org/mock/mockgen@v0.6.0
//   Version: v0.6.0 (matches go.uber.org/mock in go.mod)
//   Usage: go generate ./internal/mocks/...
//
// golangci-lint - Lint runner
//   Install: go install github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest
//   Docs: https://golangci-lint.run
