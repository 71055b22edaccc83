package service

import (
	"context"
	"fmt"
	"time"

	"be-guichet/internal/domain"
	"be-guichet/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

func newAuditEntry(kind domain.AuditKind, subject, actor string, detail map[string]interface{}) *domain.AuditEntry {
	if actor == "" {
		actor = "system"
	}
	return &domain.AuditEntry{
		ID:      uuid.NewString(),
		Kind:    kind,
		Subject: subject,
		Actor:   actor,
		Detail:  detail,
		At:      time.Now().UTC(),
	}
}

// AuditService reads the audit trail
type AuditService struct {
	audit repository.AuditRepository
}

func NewAuditService(audit repository.AuditRepository) *AuditService {
	return &AuditService{audit: audit}
}

// List returns the newest entries first. An empty kind lists every kind.
func (s *AuditService) List(ctx context.Context, kind domain.AuditKind, limit int) ([]domain.AuditEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}
	entries, err := s.audit.List(ctx, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
