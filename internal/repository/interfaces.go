package repository

import (
	"be-guichet/internal/domain"
	"context"
	"errors"
)

// ErrDuplicate is returned when a unique key is already taken
var ErrDuplicate = errors.New("duplicate record")

// Single-row getters return (nil, nil) when the row does not exist.

// CatalogRepository defines the interface for events, activities and tiers
type CatalogRepository interface {
	// CreateEvent stores a new event
	CreateEvent(ctx context.Context, event *domain.Event) error

	// GetEvent retrieves an event by ID
	GetEvent(ctx context.Context, id string) (*domain.Event, error)

	// CreateActivity stores an activity with its ordered tiers
	CreateActivity(ctx context.Context, activity *domain.Activity) error

	// GetActivity retrieves an activity with its tiers. Inside a transaction
	// the activity is locked until commit.
	GetActivity(ctx context.Context, id string) (*domain.Activity, error)

	// ListActivities retrieves the activities of an event ordered by start time
	ListActivities(ctx context.Context, eventID string) ([]domain.Activity, error)

	// SetTierReserved overwrites the reserved counter of a tier
	SetTierReserved(ctx context.Context, activityID, tier string, reserved int) error
}

// ParticipantRepository defines the interface for participant records
type ParticipantRepository interface {
	// Create stores a new participant; ErrDuplicate when the email is taken
	Create(ctx context.Context, participant *domain.Participant) error

	// GetByID retrieves a participant. Inside a transaction the participant
	// is locked until commit, serialising changes to its enrollment set.
	GetByID(ctx context.Context, id string) (*domain.Participant, error)

	// GetByEmail retrieves a participant by normalised email
	GetByEmail(ctx context.Context, email string) (*domain.Participant, error)

	// Update stores the identity fields and status of a participant
	Update(ctx context.Context, participant *domain.Participant) error
}

// EnrollmentRepository defines the interface for enrollment records
type EnrollmentRepository interface {
	// Get retrieves the enrollment of a participant for an activity
	Get(ctx context.Context, participantID, activityID string) (*domain.Enrollment, error)

	// ListByParticipant retrieves every enrollment of a participant
	ListByParticipant(ctx context.Context, participantID string) ([]domain.Enrollment, error)

	// ListByBatch retrieves the enrollments stamped with a payment batch
	ListByBatch(ctx context.Context, batchID string) ([]domain.Enrollment, error)

	// Save inserts or replaces the enrollment keyed by (participant, activity)
	Save(ctx context.Context, enrollment *domain.Enrollment) error
}

// AdmissionRepository defines the interface for émargement records
type AdmissionRepository interface {
	// Get retrieves the record for (participant, event, activity)
	Get(ctx context.Context, participantID, eventID, activityID string) (*domain.AdmissionRecord, error)

	// ListByParticipant retrieves the records of a participant for an event
	ListByParticipant(ctx context.Context, participantID, eventID string) ([]domain.AdmissionRecord, error)

	// InsertIfAbsent stores the record unless one already exists for its key.
	// It returns the stored record and whether this call created it.
	InsertIfAbsent(ctx context.Context, record *domain.AdmissionRecord) (*domain.AdmissionRecord, bool, error)
}

// AuditRepository defines the interface for the audit trail
type AuditRepository interface {
	// Append stores an audit entry
	Append(ctx context.Context, entry *domain.AuditEntry) error

	// List retrieves the latest entries of a kind, newest first
	List(ctx context.Context, kind domain.AuditKind, limit int) ([]domain.AuditEntry, error)
}

// SurveyRepository defines the interface for survey questions and raw counters
type SurveyRepository interface {
	// CreateQuestion stores a question with zeroed counters
	CreateQuestion(ctx context.Context, question *domain.SurveyQuestion) error

	// GetQuestion retrieves a question
	GetQuestion(ctx context.Context, id string) (*domain.SurveyQuestion, error)

	// Increment adds one response to an option and returns the new count
	Increment(ctx context.Context, questionID, option string) (int64, error)

	// SetCount overwrites the count of an option and returns the previous one
	SetCount(ctx context.Context, questionID, option string, count int64) (int64, error)

	// Counts retrieves the current raw count of every option
	Counts(ctx context.Context, questionID string) (map[string]int64, error)

	// Health checks the backing storage
	Health(ctx context.Context) error
}

// Tx exposes the repositories bound to a single unit of work
type Tx interface {
	Catalog() CatalogRepository
	Participants() ParticipantRepository
	Enrollments() EnrollmentRepository
	Admissions() AdmissionRepository
	Audit() AuditRepository
}

// Store is the transactional store. Its own repositories run each call as
// an independent unit of work; WithinTx groups calls all-or-nothing.
type Store interface {
	Tx

	// WithinTx runs fn in a transaction. Lock contention beyond the
	// configured wait surfaces as an unavailable error; fn is never retried.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Health checks the backing storage
	Health(ctx context.Context) error

	// Close releases the store's resources
	Close()
}
