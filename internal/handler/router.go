package handler

import (
	"net/http"
	"time"

	"be-guichet/internal/container"
	"be-guichet/internal/middleware"
	apperrors "be-guichet/pkg/errors"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Roles allowed to correct tallies and read the audit trail when operator
// tokens are enforced
var supervisorRoles = []string{"supervisor", "admin"}

// NewRouter builds the HTTP API on top of the container's services
func NewRouter(c *container.Container) http.Handler {
	cfg := c.GetConfig()
	log := c.GetLogger()
	services := c.Services

	r := chi.NewRouter()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID(log))
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(timeout))

	healthHandler := NewHealthHandler(c)
	catalogHandler := NewCatalogHandler(services.Catalog, log.Named("catalog"))
	participantHandler := NewParticipantHandler(services.Participants, services.Enrollments, log.Named("participants"))
	enrollmentHandler := NewEnrollmentHandler(services.Enrollments, log.Named("enrollments"))
	admissionHandler := NewAdmissionHandler(services.Admissions, log.Named("admissions"))
	surveyHandler := NewSurveyHandler(services.Surveys, log.Named("surveys"))
	auditHandler := NewAuditHandler(services.Audit, log.Named("audit"))

	enforced := cfg.OperatorJWTSecret != ""
	supervisorOnly := middleware.RequireRole(enforced, log, supervisorRoles...)

	// Health check (no operator identity required)
	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OperatorIdentity(cfg.OperatorJWTSecret, log))

		r.Post("/events", catalogHandler.CreateEvent)
		r.Get("/events/{eventID}", catalogHandler.GetEvent)
		r.Get("/events/{eventID}/activities", catalogHandler.ListActivities)
		r.Post("/activities", catalogHandler.CreateActivity)
		r.Get("/activities/{activityID}/tiers", catalogHandler.GetTiers)

		r.Post("/participants", participantHandler.Register)
		r.Route("/participants/{participantID}", func(r chi.Router) {
			r.Get("/", participantHandler.Get)
			r.Put("/", participantHandler.Update)
			r.Post("/archive", participantHandler.Archive)

			r.Get("/enrollments", enrollmentHandler.ListEnrollments)
			r.Put("/enrollments", enrollmentHandler.SelectActivities)
			r.Post("/enrollments/{activityID}/refund", enrollmentHandler.Refund)
			r.Post("/payments", enrollmentHandler.ConfirmPayment)

			r.Get("/events/{eventID}/enrollable", enrollmentHandler.EnrollableActivities)
			r.Get("/events/{eventID}/admissions", admissionHandler.EventAdmissions)
			r.Post("/events/{eventID}/admissions", admissionHandler.ConfirmAdmission)
		})

		r.Post("/payments/callback", enrollmentHandler.PaymentCallback)

		r.Post("/surveys", surveyHandler.CreateQuestion)
		r.Route("/surveys/{questionID}", func(r chi.Router) {
			r.Get("/tally", surveyHandler.Tally)
			r.Post("/responses", surveyHandler.RecordResponse)
			r.Get("/options/{option}", surveyHandler.Detail)
			r.With(supervisorOnly).Put("/options/{option}", surveyHandler.CorrectCount)
		})

		r.With(supervisorOnly).Get("/audit", auditHandler.List)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, log, apperrors.NewNotFoundError("Endpoint not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		appErr := apperrors.NewValidationError("Method not allowed",
			map[string]interface{}{"method": r.Method})
		appErr.StatusCode = http.StatusMethodNotAllowed
		respondError(w, r, log, appErr)
	})

	log.Info("Router configured successfully")
	return r
}
