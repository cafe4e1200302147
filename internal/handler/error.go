package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/faxingberling1/mailward/internal/domain"
)

// errorEnvelope is the failure wrapper for all API responses. The code field
// lets the UI branch on denials (for example to render an upgrade prompt on
// LIMIT_REACHED) without parsing the message.
type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// Error writes an error envelope, mapping the domain error code to an HTTP
// status. Internal error details never reach the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := ErrorCodeToHTTPStatus(code)

	logError(r, err, code, status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ELIMIT:
		// A quota denial is a well-formed, user-actionable outcome.
		return http.StatusUnprocessableEntity // 422
	case domain.ESUSPENDED:
		return http.StatusForbidden // 403
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// logError logs with level based on status: 5xx are server faults, 4xx are
// expected client outcomes.
func logError(r *http.Request, err error, code string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if op := domain.ErrorOp(err); op != "" {
		attrs = append(attrs, "op", op)
	}

	if status >= 500 {
		slog.Error("server error", attrs...)
	} else {
		slog.Info("client error", attrs...)
	}
}
