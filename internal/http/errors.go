package http

import (
	"errors"
	"fmt"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/store"
	"ledger/internal/validator"
)

// Error codes returned in the JSON error body.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeRateLimited  = "RATE_LIMITED"
	CodePartial      = "PARTIAL_MATERIALIZATION"
	CodeInternal     = "INTERNAL_ERROR"
)

// AppError is the error shape every handler reports. Internal is logged
// but never sent to the client.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	StatusCode int               `json:"-"`
	Internal   error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Internal }

func badRequest(msg string, err error) *AppError {
	return &AppError{Code: CodeBadRequest, Message: msg, StatusCode: http.StatusBadRequest, Internal: err}
}

func notFound(kind string, id int64) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %d not found", kind, id), StatusCode: http.StatusNotFound}
}

func invalid(err error) *AppError {
	return &AppError{Code: CodeValidation, Message: err.Error(), StatusCode: http.StatusUnprocessableEntity, Internal: err}
}

// toAppError maps service and store errors onto HTTP statuses.
func toAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if fields := validator.FieldErrors(err); fields != nil {
		return &AppError{Code: CodeValidation, Message: "request failed validation", Fields: fields, StatusCode: http.StatusUnprocessableEntity}
	}

	switch {
	case errors.Is(err, services.ErrValidation), isDomainError(err):
		return &AppError{Code: CodeValidation, Message: err.Error(), StatusCode: http.StatusUnprocessableEntity}
	case errors.Is(err, store.ErrNotFound):
		return &AppError{Code: CodeNotFound, Message: "resource not found", StatusCode: http.StatusNotFound, Internal: err}
	case errors.Is(err, services.ErrLedgerNotEmpty):
		return &AppError{Code: CodeConflict, Message: err.Error(), StatusCode: http.StatusConflict}
	case errors.Is(err, services.ErrPartialMaterialization):
		return &AppError{Code: CodePartial, Message: "transactions were created but recurring markers are stale", StatusCode: http.StatusInternalServerError, Internal: err}
	}
	return &AppError{Code: CodeInternal, Message: "internal server error", StatusCode: http.StatusInternalServerError, Internal: err}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount, core.ErrInvalidRate, core.ErrInvalidDay, core.ErrInvalidMonth,
		core.ErrInvalidType, core.ErrInvalidStatus, core.ErrInvalidDirection, core.ErrInvalidCategory,
		core.ErrInvalidDayOfMonth, core.ErrEmptyDescription, core.ErrEmptyCategory, core.ErrEmptyName,
		core.ErrEmptyCounterparty, core.ErrDescriptionLength,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeError logs err and writes its JSON representation.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	logger := log.FromContext(r.Context())
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldStatusCode, appErr.StatusCode)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldStatusCode, appErr.StatusCode)
	}
	writeJSON(w, appErr.StatusCode, appErr)
}
