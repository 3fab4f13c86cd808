package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "document not found",
			},
			want: "document not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeUnavailable,
				Message: "redis hgetall",
				Cause:   errors.New("connection refused"),
			},
			want: "redis hgetall: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternal,
		Message: "wrapped error",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		err     *AppError
		code    ErrorCode
		message string
	}{
		{"not found", NotFound("document not found"), ErrCodeNotFound, "document not found"},
		{"not foundf", NotFoundf("document %s not found", "abc"), ErrCodeNotFound, "document abc not found"},
		{"conflict", Conflict("document exists"), ErrCodeConflict, "document exists"},
		{"conflictf", Conflictf("document %s exists", "abc"), ErrCodeConflict, "document abc exists"},
		{"validation", Validation("bad input"), ErrCodeValidation, "bad input"},
		{"busy", Busy("queue full"), ErrCodeBusy, "queue full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if tt.err.Message != tt.message {
				t.Errorf("Message = %v, want %v", tt.err.Message, tt.message)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("URL", "invalid url")
	if err.Code != ErrCodeValidation {
		t.Errorf("ValidationField().Code = %v, want %v", err.Code, ErrCodeValidation)
	}
	if err.Field != "URL" {
		t.Errorf("ValidationField().Field = %v, want URL", err.Field)
	}
	if GetField(fmt.Errorf("wrapped: %w", err)) != "URL" {
		t.Error("GetField should see through wrapping")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Unavailable(cause, "redis hset")

	if err.Code != ErrCodeUnavailable {
		t.Errorf("Unavailable().Code = %v, want %v", err.Code, ErrCodeUnavailable)
	}
	if !errors.Is(err, cause) {
		t.Error("Unavailable() should preserve the cause")
	}
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(nil, "x") != nil {
		t.Fatal("FromContext(nil) should be nil")
	}
	if !IsTimeout(FromContext(context.DeadlineExceeded, "fetch")) {
		t.Error("deadline should map to timeout")
	}
	if !IsCanceled(FromContext(fmt.Errorf("wrap: %w", context.Canceled), "fetch")) {
		t.Error("canceled should map to canceled")
	}
	plain := errors.New("plain")
	if !errors.Is(FromContext(plain, "fetch"), plain) || GetCode(FromContext(plain, "fetch")) != "" {
		t.Error("non-context errors should pass through unchanged")
	}
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found direct", NotFound("x"), IsNotFound, true},
		{"not found wrapped", fmt.Errorf("get: %w", NotFound("x")), IsNotFound, true},
		{"not found other code", Conflict("x"), IsNotFound, false},
		{"conflict", Conflict("x"), IsConflict, true},
		{"validation", Validation("x"), IsValidation, true},
		{"unavailable", Unavailable(errors.New("x"), "y"), IsUnavailable, true},
		{"busy", Busy("x"), IsBusy, true},
		{"plain error", errors.New("x"), IsBusy, false},
		{"nil", nil, IsNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(fmt.Errorf("wrap: %w", Busy("full"))); got != ErrCodeBusy {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeBusy)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode() = %v, want empty", got)
	}
}
