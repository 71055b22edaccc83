package domain

import "time"

// PaymentStatus is the payment state of an enrollment
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Enrollment links a participant to an activity at a tier.
// Once paid, Tier and Price never change.
type Enrollment struct {
	ParticipantID string        `json:"participant_id"`
	ActivityID    string        `json:"activity_id"`
	EventID       string        `json:"event_id"`
	Tier          string        `json:"tier"`
	Price         int64         `json:"price"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	BatchID       string        `json:"batch_id"`
	EnrolledAt    time.Time     `json:"enrolled_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	RefundedAt    *time.Time    `json:"refunded_at,omitempty"`
}

// IsPaid reports whether the enrollment is locked by payment
func (e *Enrollment) IsPaid() bool {
	return e.PaymentStatus == PaymentPaid
}

// Selection is one requested (activity, tier) pair
type Selection struct {
	ActivityID string `json:"activity_id" validate:"required"`
	Tier       string `json:"tier" validate:"required"`
}

// SelectionResult is returned by the guichet selection flow
type SelectionResult struct {
	BatchID     string       `json:"batch_id"`
	Enrollments []Enrollment `json:"enrollments"`
	TotalDue    int64        `json:"total_due"`
}

// PaymentResult reports a payment confirmation. Replayed entries appear in
// AlreadyPaid and keep their original PaidAt.
type PaymentResult struct {
	Confirmed   []Enrollment `json:"confirmed"`
	AlreadyPaid []Enrollment `json:"already_paid"`
}

// RefundResult reports a refund. AdmissionAnomaly is set when the participant
// had already been admitted to the refunded activity.
type RefundResult struct {
	Enrollment       Enrollment `json:"enrollment"`
	AdmissionAnomaly bool       `json:"admission_anomaly"`
}

// EnrollableActivity is one row of the edit session listing. Locked rows are
// paid and can be neither deselected nor re-tiered.
type EnrollableActivity struct {
	Activity   Activity    `json:"activity"`
	Enrollment *Enrollment `json:"enrollment,omitempty"`
	Selected   bool        `json:"selected"`
	Locked     bool        `json:"locked"`
}
