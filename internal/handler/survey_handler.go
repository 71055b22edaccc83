package handler

import (
	"net/http"
	"net/url"

	"be-guichet/internal/domain"
	"be-guichet/internal/middleware"
	"be-guichet/internal/service"
	apperrors "be-guichet/pkg/errors"
	"be-guichet/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type SurveyHandler struct {
	surveys *service.SurveyService
	log     *logger.Logger
}

func NewSurveyHandler(surveys *service.SurveyService, log *logger.Logger) *SurveyHandler {
	return &SurveyHandler{surveys: surveys, log: log}
}

type createQuestionRequest struct {
	Label   string   `json:"label"`
	Options []string `json:"options"`
}

type responseRequest struct {
	Option string `json:"option"`
}

type correctionRequest struct {
	Count  *int64 `json:"count"`
	Reason string `json:"reason"`
}

// CreateQuestion handles POST /api/v1/surveys
func (h *SurveyHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req createQuestionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	q, err := h.surveys.CreateQuestion(r.Context(), req.Label, req.Options)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, q)
}

// Tally handles GET /api/v1/surveys/{questionID}/tally. Results are never
// cached so kiosks see their own submissions immediately.
func (h *SurveyHandler) Tally(w http.ResponseWriter, r *http.Request) {
	tally, err := h.surveys.Tally(r.Context(), chi.URLParam(r, "questionID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, tally)
}

// Detail handles GET /api/v1/surveys/{questionID}/options/{option}
func (h *SurveyHandler) Detail(w http.ResponseWriter, r *http.Request) {
	option, err := optionParam(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	detail, err := h.surveys.Detail(r.Context(), chi.URLParam(r, "questionID"), option)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, detail)
}

// RecordResponse handles POST /api/v1/surveys/{questionID}/responses
func (h *SurveyHandler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	questionID := chi.URLParam(r, "questionID")
	count, err := h.surveys.RecordResponse(r.Context(), questionID, req.Option)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, domain.OptionTally{Option: req.Option, Count: count})
}

// CorrectCount handles PUT /api/v1/surveys/{questionID}/options/{option}
func (h *SurveyHandler) CorrectCount(w http.ResponseWriter, r *http.Request) {
	option, err := optionParam(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	var req correctionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	if req.Count == nil {
		respondError(w, r, h.log, apperrors.NewValidationError("count is required",
			map[string]interface{}{"count": "required"}))
		return
	}

	detail, err := h.surveys.CorrectCount(r.Context(), chi.URLParam(r, "questionID"), option,
		*req.Count, middleware.ActorFromContext(r.Context()), req.Reason)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// optionParam returns the option label from the path. chi matches on
// RawPath when the request carries one (an escaped slash, for instance), in
// which case the segment is still escaped.
func optionParam(r *http.Request) (string, error) {
	option := chi.URLParam(r, "option")
	if r.URL.RawPath == "" {
		return option, nil
	}
	option, err := url.PathUnescape(option)
	if err != nil {
		return "", apperrors.NewValidationError("invalid option", map[string]interface{}{"option": err.Error()})
	}
	return option, nil
}
