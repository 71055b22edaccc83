package handler

import (
	"net/http"

	"be-guichet/internal/domain"
	"be-guichet/internal/middleware"
	"be-guichet/internal/service"
	"be-guichet/pkg/logger"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	log         *logger.Logger
}

func NewEnrollmentHandler(enrollments *service.EnrollmentService, log *logger.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, log: log}
}

type selectRequest struct {
	Selections []domain.Selection `json:"selections"`
}

type paymentRequest struct {
	ActivityIDs []string `json:"activity_ids"`
}

// paymentCallback is what the payment gateway posts once a batch settles
type paymentCallback struct {
	BatchID string `json:"batch_id"`
	Success bool   `json:"success"`
}

// ListEnrollments handles GET /api/v1/participants/{participantID}/enrollments
func (h *EnrollmentHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.enrollments.ListEnrollments(r.Context(), chi.URLParam(r, "participantID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"enrollments": enrollments,
	})
}

// SelectActivities handles PUT /api/v1/participants/{participantID}/enrollments
func (h *EnrollmentHandler) SelectActivities(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	result, err := h.enrollments.SelectActivities(r.Context(), chi.URLParam(r, "participantID"), req.Selections)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// EnrollableActivities handles GET /api/v1/participants/{participantID}/events/{eventID}/enrollable
func (h *EnrollmentHandler) EnrollableActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.enrollments.EnrollableActivities(r.Context(),
		chi.URLParam(r, "participantID"), chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activities": activities,
	})
}

// ConfirmPayment handles POST /api/v1/participants/{participantID}/payments
func (h *EnrollmentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	result, err := h.enrollments.ConfirmPayment(r.Context(), chi.URLParam(r, "participantID"), req.ActivityIDs)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Refund handles POST /api/v1/participants/{participantID}/enrollments/{activityID}/refund
func (h *EnrollmentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	result, err := h.enrollments.Refund(r.Context(),
		chi.URLParam(r, "participantID"),
		chi.URLParam(r, "activityID"),
		middleware.ActorFromContext(r.Context()))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// PaymentCallback handles POST /api/v1/payments/callback. A failed payment
// changes nothing: the enrollments stay unpaid and can be paid again.
func (h *EnrollmentHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req paymentCallback
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	if !req.Success {
		h.log.Info("Payment failure acknowledged", zap.String("batch_id", req.BatchID))
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"batch_id":     req.BatchID,
			"acknowledged": true,
		})
		return
	}

	result, err := h.enrollments.ConfirmBatch(r.Context(), req.BatchID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
