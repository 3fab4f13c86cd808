package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/mmk-summarizer/internal/errors"
)

// statusForCode maps application error codes to HTTP statuses.
var statusForCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeValidation:  http.StatusUnprocessableEntity,
	apperrors.ErrCodeNotFound:    http.StatusNotFound,
	apperrors.ErrCodeConflict:    http.StatusConflict,
	apperrors.ErrCodeBusy:        http.StatusServiceUnavailable,
	apperrors.ErrCodeUnavailable: http.StatusServiceUnavailable,
	apperrors.ErrCodeTimeout:     http.StatusGatewayTimeout,
}

// writeServiceError renders an error returned by the job service.
// Errors without a known code are reported as internal and their cause is only logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := apperrors.GetCode(err)
	status, ok := statusForCode[code]
	if !ok {
		if logger != nil {
			logger.ErrorContext(r.Context(), "request failed",
				"method", r.Method, "path", r.URL.Path, "error", err)
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: string(apperrors.ErrCodeInternal),
			Err:     errors.New("internal server error"),
		})
		return
	}

	if status >= http.StatusInternalServerError && logger != nil {
		logger.WarnContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "code", code, "error", err)
	}
	if status == http.StatusServiceUnavailable && code == apperrors.ErrCodeBusy {
		w.Header().Set("Retry-After", "1")
	}

	WriteError(w, ErrorParams{
		Code:    status,
		ErrCode: string(code),
		Err:     publicError(err),
		Field:   apperrors.GetField(err),
	})
}

// publicError strips the cause chain so store internals do not leak into responses.
func publicError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return errors.New(appErr.Message)
	}
	return err
}
