package handler

import (
	"errors"
	"net/http"

	"be-guichet/internal/domain"
	"be-guichet/internal/service"
	apperrors "be-guichet/pkg/errors"
	"be-guichet/pkg/logger"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ParticipantHandler struct {
	participants *service.ParticipantService
	enrollments  *service.EnrollmentService
	log          *logger.Logger
}

func NewParticipantHandler(participants *service.ParticipantService, enrollments *service.EnrollmentService, log *logger.Logger) *ParticipantHandler {
	return &ParticipantHandler{participants: participants, enrollments: enrollments, log: log}
}

// registerRequest is the desk form: identity plus the activities picked at
// the counter
type registerRequest struct {
	domain.ParticipantInfo
	Selections []domain.Selection `json:"selections,omitempty"`
}

type registerResponse struct {
	Participant *domain.Participant     `json:"participant"`
	Selection   *domain.SelectionResult `json:"selection,omitempty"`
}

// Register handles POST /api/v1/participants
//
// The participant is created first. If the selections are then rejected the
// registration stands and the error carries the new participant_id so the
// desk can correct the selection with PUT .../enrollments.
func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	p, err := h.participants.Register(r.Context(), req.ParticipantInfo)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	resp := registerResponse{Participant: p}
	if len(req.Selections) > 0 {
		selection, err := h.enrollments.SelectActivities(r.Context(), p.ID, req.Selections)
		if err != nil {
			h.log.Info("Selection rejected after registration",
				zap.String("participant_id", p.ID), zap.Error(err))
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				appErr.WithDetail("participant_id", p.ID)
			}
			respondError(w, r, h.log, err)
			return
		}
		resp.Selection = selection
	}

	respondJSON(w, http.StatusCreated, resp)
}

// Get handles GET /api/v1/participants/{participantID}
func (h *ParticipantHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.participants.Get(r.Context(), chi.URLParam(r, "participantID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Update handles PUT /api/v1/participants/{participantID}
func (h *ParticipantHandler) Update(w http.ResponseWriter, r *http.Request) {
	var info domain.ParticipantInfo
	if err := decodeJSON(r, &info); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	p, err := h.participants.Update(r.Context(), chi.URLParam(r, "participantID"), info)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Archive handles POST /api/v1/participants/{participantID}/archive
func (h *ParticipantHandler) Archive(w http.ResponseWriter, r *http.Request) {
	p, err := h.participants.Archive(r.Context(), chi.URLParam(r, "participantID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
