package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"be-guichet/internal/middleware"
	apperrors "be-guichet/pkg/errors"
	"be-guichet/pkg/logger"

	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies; the largest legitimate payload is an
// activity with its tiers.
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes the error envelope. Business errors keep their kind and
// status; anything else is logged and reported as an internal error.
func respondError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	requestID := middleware.RequestIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.StatusCode == 0 {
		log.Error("Request failed",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		appErr = apperrors.NewInternalError("internal server error", err)
	}

	if appErr.Retryable() {
		w.Header().Set("Retry-After", "1")
	}
	respondJSON(w, appErr.StatusCode, appErr.Response(requestID))
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid request body", map[string]interface{}{"body": err.Error()})
	}
	return nil
}
