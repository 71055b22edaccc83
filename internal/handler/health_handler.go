package handler

import (
	"context"
	"net/http"
	"time"

	"be-guichet/internal/container"

	"go.uber.org/zap"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(container *container.Container) *HealthHandler {
	return &HealthHandler{
		container: container,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Service    string            `json:"service"`
	Store      string            `json:"store"`
	Components map[string]string `json:"components"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Version:    "1.0.0",
		Service:    "be-guichet",
		Store:      "memory",
		Components: make(map[string]string),
	}
	if h.container.HasDatabase() {
		response.Store = "postgres"
	}

	status := http.StatusOK
	for component, err := range h.container.Health(ctx) {
		if err != nil {
			logger.Warn("Health check failed", zap.String("component", component), zap.Error(err))
			response.Components[component] = "unhealthy"
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Components[component] = "healthy"
	}

	respondJSON(w, status, response)
}
