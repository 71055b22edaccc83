package domain

import "time"

// ParticipantStatus is the global status of a participant
type ParticipantStatus string

const (
	ParticipantActive   ParticipantStatus = "active"
	ParticipantArchived ParticipantStatus = "archived"
)

// Participant is never hard-deleted; archival keeps admission history intact
type Participant struct {
	ID        string            `json:"id"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Email     string            `json:"email"`
	Phone     string            `json:"phone"`
	Status    ParticipantStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// IsArchived reports whether the participant was soft-archived
func (p *Participant) IsArchived() bool {
	return p.Status == ParticipantArchived
}

// ParticipantInfo carries the editable identity fields
type ParticipantInfo struct {
	FirstName string `json:"first_name" validate:"required,min=2,max=100"`
	LastName  string `json:"last_name" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"omitempty,min=6,max=20"`
}
