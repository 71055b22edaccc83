package handler

import (
	"net/http"

	"be-guichet/internal/domain"
	"be-guichet/internal/middleware"
	"be-guichet/internal/service"
	"be-guichet/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type AdmissionHandler struct {
	admissions *service.AdmissionService
	log        *logger.Logger
}

func NewAdmissionHandler(admissions *service.AdmissionService, log *logger.Logger) *AdmissionHandler {
	return &AdmissionHandler{admissions: admissions, log: log}
}

// admissionRequest is a scan. An empty activity_id admits to the event itself.
type admissionRequest struct {
	ActivityID string                 `json:"activity_id"`
	Method     domain.AdmissionMethod `json:"method"`
}

// EventAdmissions handles GET /api/v1/participants/{participantID}/events/{eventID}/admissions
func (h *AdmissionHandler) EventAdmissions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.admissions.EventAdmissions(r.Context(),
		chi.URLParam(r, "participantID"), chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"admissions": rows,
	})
}

// ConfirmAdmission handles POST /api/v1/participants/{participantID}/events/{eventID}/admissions.
// A repeated scan answers 200 with the original record.
func (h *AdmissionHandler) ConfirmAdmission(w http.ResponseWriter, r *http.Request) {
	var req admissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	record, err := h.admissions.ConfirmAdmission(r.Context(),
		chi.URLParam(r, "participantID"),
		chi.URLParam(r, "eventID"),
		req.ActivityID,
		req.Method,
		middleware.ActorFromContext(r.Context()))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}
