package domain

import "time"

// AuditKind classifies audit trail entries
type AuditKind string

const (
	AuditCapacityReleaseClamped AuditKind = "capacity_release_clamped"
	AuditRefundAfterAdmission   AuditKind = "refund_after_admission"
	AuditTallyCorrection        AuditKind = "tally_correction"
)

// AuditEntry is an append-only record of an anomaly or an administrative action
type AuditEntry struct {
	ID      string                 `json:"id"`
	Kind    AuditKind              `json:"kind"`
	Subject string                 `json:"subject"`
	Actor   string                 `json:"actor"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
	At      time.Time              `json:"at"`
}
