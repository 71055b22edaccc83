package service

import (
	"be-guichet/internal/repository"

	"go.uber.org/zap"
)

// Services aggregates the consistency core behind the HTTP API
type Services struct {
	Catalog      *CatalogService
	Participants *ParticipantService
	Enrollments  *EnrollmentService
	Admissions   *AdmissionService
	Surveys      *SurveyService
	Audit        *AuditService
}

// NewServices wires every service onto one transactional store. Survey
// counters may live elsewhere; survey corrections are audited in the store.
func NewServices(store repository.Store, surveys repository.SurveyRepository, logger *zap.Logger) *Services {
	catalog := NewCatalogService(store, logger.Named("catalog"))

	return &Services{
		Catalog:      catalog,
		Participants: NewParticipantService(store, logger.Named("participants")),
		Enrollments:  NewEnrollmentService(store, catalog, logger.Named("enrollments")),
		Admissions:   NewAdmissionService(store, logger.Named("admissions")),
		Surveys:      NewSurveyService(surveys, store.Audit(), logger.Named("surveys")),
		Audit:        NewAuditService(store.Audit()),
	}
}
