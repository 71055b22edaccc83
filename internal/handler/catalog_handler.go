package handler

import (
	"net/http"
	"time"

	"be-guichet/internal/domain"
	"be-guichet/internal/service"
	"be-guichet/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type CatalogHandler struct {
	catalog *service.CatalogService
	log     *logger.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, log: log}
}

type createEventRequest struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location string    `json:"location"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type createActivityRequest struct {
	ID       string        `json:"id"`
	EventID  string        `json:"event_id"`
	Name     string        `json:"name"`
	Location string        `json:"location"`
	StartsAt time.Time     `json:"starts_at"`
	EndsAt   time.Time     `json:"ends_at"`
	Capacity *int          `json:"capacity"`
	Tiers    []tierRequest `json:"tiers"`
}

type tierRequest struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Capacity *int   `json:"capacity"`
}

// CreateEvent handles POST /api/v1/events
func (h *CatalogHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	event, err := h.catalog.CreateEvent(r.Context(), &domain.Event{
		ID:       req.ID,
		Name:     req.Name,
		Location: req.Location,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, event)
}

// GetEvent handles GET /api/v1/events/{eventID}
func (h *CatalogHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.catalog.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

// ListActivities handles GET /api/v1/events/{eventID}/activities
func (h *CatalogHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.catalog.ListActivities(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activities": activities,
	})
}

// CreateActivity handles POST /api/v1/activities
func (h *CatalogHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	var req createActivityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	tiers := make([]domain.Tier, 0, len(req.Tiers))
	for _, t := range req.Tiers {
		tiers = append(tiers, domain.Tier{Name: t.Name, Price: t.Price, Capacity: t.Capacity})
	}

	activity, err := h.catalog.CreateActivity(r.Context(), &domain.Activity{
		ID:       req.ID,
		EventID:  req.EventID,
		Name:     req.Name,
		Location: req.Location,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Capacity: req.Capacity,
		Tiers:    tiers,
	})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, activity)
}

// GetTiers handles GET /api/v1/activities/{activityID}/tiers
func (h *CatalogHandler) GetTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.catalog.GetTiers(r.Context(), chi.URLParam(r, "activityID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activity_id": chi.URLParam(r, "activityID"),
		"tiers":       tiers,
	})
}
