// Package errors classifies failures into low-cardinality labels for metrics and logs.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/target/mmk-summarizer/internal/errors"
)

// Classify returns a short label for err.
// Deadline and cancellation errors win, then the AppError code, then the innermost
// concrete type name in snake_case.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case goerrors.Is(err, context.DeadlineExceeded) || apperrors.IsTimeout(err):
		return "timeout"
	case goerrors.Is(err, context.Canceled) || apperrors.IsCanceled(err):
		return "canceled"
	}
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}
	return typeName(err)
}

func typeName(err error) string {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
