package middleware

import (
	"context"
	"net/http"

	"be-guichet/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// OperatorContextKey is the key for the acting operator in context
	OperatorContextKey ContextKey = "operator"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// RequestID creates a middleware that adds a unique request ID to each request.
// An inbound X-Request-ID is kept so a payment gateway can correlate retries.
func RequestID(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > 64 {
				requestID = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			log.Debug("Request received",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the request ID, or "" outside a request
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}
