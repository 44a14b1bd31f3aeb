package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/alshaya00/Alshaya-sub002/pkg/apperrors"
	"github.com/alshaya00/Alshaya-sub002/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ServiceError maps service-layer errors onto the stable HTTP error
// taxonomy: 401 unauthorized, 400 invalid request or snapshot, 404 not
// found, 500 for storage failures. The response carries a machine-readable
// code and a human-readable message; error details that may echo row
// contents are sanitized before logging.
func ServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperrors.ErrValidation):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, apperrors.ErrInvalidSnapshot):
		status, code = http.StatusBadRequest, "invalid_snapshot"
	case errors.Is(err, apperrors.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	default:
		status, code = http.StatusInternalServerError, "storage_error"
		logger.Error("Unexpected service error", zap.String("error", logging.SanitizeError(err)))
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}

	if werr := ErrorResponse(w, status, code, message); werr != nil {
		logger.Error("Failed to write error response", zap.Error(werr))
	}
}
