package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/domain"
)

// Error codes returned in the error field of a response body.
const (
	codeInvalidRequest  = "invalid_request"
	codeValidation      = "validation_failed"
	codeUnauthorized    = "unauthorized"
	codeForbidden       = "forbidden"
	codeNotFound        = "not_found"
	codeConflict        = "conflict"
	codeLockTimeout     = "lock_timeout"
	codeTransferFaulted = "transfer_faulted"
	codeInternal        = "internal_error"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// apiError is the HTTP rendering of an error.
type apiError struct {
	status int
	code   string
}

// mapDomainError maps domain errors to HTTP status codes and error codes.
func mapDomainError(err error) apiError {
	var verr *dto.ValidationError
	switch {
	case errors.As(err, &verr), domain.IsValidation(err):
		return apiError{http.StatusBadRequest, codeValidation}
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrExpiredToken):
		return apiError{http.StatusUnauthorized, codeUnauthorized}
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrInsufficientRole):
		return apiError{http.StatusForbidden, codeForbidden}
	case domain.IsNotFound(err):
		return apiError{http.StatusNotFound, codeNotFound}
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInconsistentTransferState),
		errors.Is(err, domain.ErrTransferNotFaulted):
		return apiError{http.StatusConflict, codeConflict}
	case domain.IsTransient(err):
		return apiError{http.StatusServiceUnavailable, codeLockTimeout}
	case errors.Is(err, domain.ErrTransferFaulted):
		return apiError{http.StatusInternalServerError, codeTransferFaulted}
	default:
		return apiError{http.StatusInternalServerError, codeInternal}
	}
}

// respondError renders err. Unexpected errors are logged and their text is
// not exposed.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := mapDomainError(err)

	var details any
	var verr *dto.ValidationError
	if errors.As(err, &verr) {
		details = verr.Fields
	}

	message := err.Error()
	switch mapped.code {
	case codeInternal:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message = "internal error"
	case codeTransferFaulted:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("transfer faulted")
	case codeLockTimeout:
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, mapped.status, mapped.code, message, details)
}

// decodeAndValidate decodes a JSON body into req and checks its tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body", nil)
		return false
	}
	if err := dto.Validate(req); err != nil {
		respondError(w, r, err)
		return false
	}
	return true
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseTimeQuery parses an RFC 3339 query parameter. Absent means nil.
func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, domain.ErrInvalidDateRange
	}
	return &t, nil
}
