package handler

import (
	"net/http"
	"strconv"

	"be-guichet/internal/domain"
	"be-guichet/internal/service"
	apperrors "be-guichet/pkg/errors"
	"be-guichet/pkg/logger"
)

type AuditHandler struct {
	audit *service.AuditService
	log   *logger.Logger
}

func NewAuditHandler(audit *service.AuditService, log *logger.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, log: log}
}

// List handles GET /api/v1/audit?kind=&limit=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, r, h.log, apperrors.NewValidationError("invalid limit",
				map[string]interface{}{"limit": raw}))
			return
		}
		limit = n
	}

	entries, err := h.audit.List(r.Context(), domain.AuditKind(r.URL.Query().Get("kind")), limit)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
	})
}
