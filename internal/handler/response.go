package handler

// RESPONSE HELPERS:
// Every endpoint answers with the same envelope so clients can branch on
// one field:
//
//	success: {"success": true,  "data": ...}
//	failure: {"success": false, "error": {"code": "...", "message": "...", "details": ...}}
//
// Handlers never build these by hand; they call writeData or writeError.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/sakif/game-gateway/internal/apperror"
)

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// errorBody is the standard error shape returned by all API endpoints.
type errorBody struct {
	Code    string `json:"code"`              // machine-readable, e.g. "not_found"
	Message string `json:"message"`           // human-readable description
	Details any    `json:"details,omitempty"` // violations, upstream kind, ...
}

// writeJSON sends v with the given status code.
//
// Headers and status must be written before the body; once Encode starts
// writing, header changes are ignored.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent, so logging is all we can do.
		logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func writeData(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	writeJSON(w, logger, status, successEnvelope{Success: true, Data: data})
}

// writeError maps a service error to an HTTP status and sends the failure
// envelope.
//
// ERROR MAPPING:
// The service layer returns *apperror.AppError values wrapping a sentinel.
// errors.Is walks the wrap chain, so
//
//	fmt.Errorf("service/games: detail: %w", apperror.NotFound(...))
//
// still maps to 404. Anything unrecognised is a 500 with a generic message;
// internal details only go to the log.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, logger, http.StatusInternalServerError, errorEnvelope{
			Error: errorBody{Code: "internal_error", Message: "an internal error occurred"},
		})
		return
	}

	status, body := http.StatusInternalServerError, errorBody{Code: "internal_error", Message: appErr.Message}

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, body.Code = http.StatusBadRequest, "validation_error"
		body.Details = validationDetails(appErr)
	case errors.Is(err, apperror.ErrNotFound):
		status, body.Code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, body.Code = http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, body.Code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrUpstreamUnavailable):
		status, body.Code = http.StatusBadGateway, "upstream_unavailable"
		if appErr.Kind == "timeout" {
			status = http.StatusGatewayTimeout
		}
		body.Details = map[string]string{"kind": appErr.Kind}
		logger.Warn("recommendation backend unavailable",
			slog.String("kind", appErr.Kind),
			slog.Any("cause", appErr.Cause),
		)
	case errors.Is(err, apperror.ErrNoDataAvailable):
		status, body.Code = http.StatusServiceUnavailable, "no_data_available"
	case errors.Is(err, apperror.ErrMalformed):
		body.Message = "an internal error occurred"
		logger.Error("malformed upstream payload",
			slog.String("error", err.Error()),
			slog.Any("cause", appErr.Cause),
		)
	default:
		body.Message = "an internal error occurred"
		logger.Error("unmapped application error", slog.String("error", err.Error()))
	}

	writeJSON(w, logger, status, errorEnvelope{Error: body})
}

func validationDetails(e *apperror.AppError) any {
	if e.Field == "" {
		return map[string]any{"violations": e.Violations}
	}
	return map[string]any{"field": e.Field, "violations": e.Violations}
}
