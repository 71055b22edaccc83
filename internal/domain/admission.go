package domain

import "time"

// AdmissionMethod is the émargement tri-state. MethodNone is never stored:
// it is the absence of a record.
type AdmissionMethod string

const (
	MethodNone     AdmissionMethod = "none"
	MethodPhysical AdmissionMethod = "physical"
	MethodOnline   AdmissionMethod = "online"
)

// Valid reports whether the method can be stored on a record
func (m AdmissionMethod) Valid() bool {
	return m == MethodPhysical || m == MethodOnline
}

// GlobalEntry is the activity id used for event-level entry
const GlobalEntry = ""

// AdmissionRecord is unique per (participant, event, activity)
type AdmissionRecord struct {
	ParticipantID string          `json:"participant_id"`
	EventID       string          `json:"event_id"`
	ActivityID    string          `json:"activity_id,omitempty"`
	Method        AdmissionMethod `json:"method"`
	ConfirmedAt   time.Time       `json:"confirmed_at"`
	ConfirmedBy   string          `json:"confirmed_by"`
}

// IsGlobal reports whether the record is the event entry check-in
func (r *AdmissionRecord) IsGlobal() bool {
	return r.ActivityID == GlobalEntry
}

// AdmissionStatus is one row of a participant's admission overview
type AdmissionStatus struct {
	ActivityID   string          `json:"activity_id,omitempty"`
	ActivityName string          `json:"activity_name"`
	Status       AdmissionMethod `json:"status"`
	CanConfirm   bool            `json:"can_confirm"`
	ConfirmedAt  *time.Time      `json:"confirmed_at,omitempty"`
	ConfirmedBy  string          `json:"confirmed_by,omitempty"`
}
