package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"be-guichet/internal/domain"

	"github.com/jackc/pgx/v5"
)

// Participants

type pgParticipants struct{ v *pgView }

const participantColumns = `id, first_name, last_name, email, phone, status, created_at, updated_at`

func scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &p, nil
}

// Create creates a new participant
func (r pgParticipants) Create(ctx context.Context, p *domain.Participant) error {
	_, err := r.v.db.Exec(ctx, `
		INSERT INTO participants (`+participantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

// GetByID gets a participant by ID, locking the row inside a transaction
func (r pgParticipants) GetByID(ctx context.Context, id string) (*domain.Participant, error) {
	return scanParticipant(r.v.db.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = $1`+r.v.forUpdate(), id))
}

// GetByEmail gets a participant by email
func (r pgParticipants) GetByEmail(ctx context.Context, email string) (*domain.Participant, error) {
	return scanParticipant(r.v.db.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE email = $1`, email))
}

// Update updates identity fields and status
func (r pgParticipants) Update(ctx context.Context, p *domain.Participant) error {
	tag, err := r.v.db.Exec(ctx, `
		UPDATE participants
		SET first_name = $2, last_name = $3, email = $4, phone = $5, status = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.Status, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("participant %s not found", p.ID)
	}
	return nil
}

// Enrollments

type pgEnrollments struct{ v *pgView }

const enrollmentColumns = `participant_id, activity_id, event_id, tier, price, payment_status,
	batch_id, enrolled_at, paid_at, refunded_at`

func scanEnrollment(row pgx.Row) (domain.Enrollment, error) {
	var e domain.Enrollment
	err := row.Scan(&e.ParticipantID, &e.ActivityID, &e.EventID, &e.Tier, &e.Price, &e.PaymentStatus,
		&e.BatchID, &e.EnrolledAt, &e.PaidAt, &e.RefundedAt)
	return e, err
}

func (r pgEnrollments) list(ctx context.Context, where string, arg string) ([]domain.Enrollment, error) {
	rows, err := r.v.db.Query(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE `+where+`
		ORDER BY enrolled_at ASC, activity_id ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Enrollment, 0)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get gets one enrollment
func (r pgEnrollments) Get(ctx context.Context, participantID, activityID string) (*domain.Enrollment, error) {
	e, err := scanEnrollment(r.v.db.QueryRow(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE participant_id = $1 AND activity_id = $2`, participantID, activityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return &e, nil
}

// ListByParticipant gets the enrollments of a participant
func (r pgEnrollments) ListByParticipant(ctx context.Context, participantID string) ([]domain.Enrollment, error) {
	return r.list(ctx, "participant_id = $1", participantID)
}

// ListByBatch gets the enrollments of a payment batch
func (r pgEnrollments) ListByBatch(ctx context.Context, batchID string) ([]domain.Enrollment, error) {
	return r.list(ctx, "batch_id = $1", batchID)
}

// Save upserts an enrollment
func (r pgEnrollments) Save(ctx context.Context, e *domain.Enrollment) error {
	_, err := r.v.db.Exec(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (participant_id, activity_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			price = EXCLUDED.price,
			payment_status = EXCLUDED.payment_status,
			batch_id = EXCLUDED.batch_id,
			enrolled_at = EXCLUDED.enrolled_at,
			paid_at = EXCLUDED.paid_at,
			refunded_at = EXCLUDED.refunded_at`,
		e.ParticipantID, e.ActivityID, e.EventID, e.Tier, e.Price, e.PaymentStatus,
		e.BatchID, e.EnrolledAt, e.PaidAt, e.RefundedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save enrollment: %w", err)
	}
	return nil
}

// Admissions

type pgAdmissions struct{ v *pgView }

const admissionColumns = `participant_id, event_id, activity_id, method, confirmed_at, confirmed_by`

func scanAdmission(row pgx.Row) (domain.AdmissionRecord, error) {
	var a domain.AdmissionRecord
	err := row.Scan(&a.ParticipantID, &a.EventID, &a.ActivityID, &a.Method, &a.ConfirmedAt, &a.ConfirmedBy)
	return a, err
}

// Get gets one admission record
func (r pgAdmissions) Get(ctx context.Context, participantID, eventID, activityID string) (*domain.AdmissionRecord, error) {
	a, err := scanAdmission(r.v.db.QueryRow(ctx, `
		SELECT `+admissionColumns+`
		FROM admission_records
		WHERE participant_id = $1 AND event_id = $2 AND activity_id = $3`,
		participantID, eventID, activityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admission: %w", err)
	}
	return &a, nil
}

// ListByParticipant gets the admission records of a participant for an event
func (r pgAdmissions) ListByParticipant(ctx context.Context, participantID, eventID string) ([]domain.AdmissionRecord, error) {
	rows, err := r.v.db.Query(ctx, `
		SELECT `+admissionColumns+`
		FROM admission_records
		WHERE participant_id = $1 AND event_id = $2
		ORDER BY activity_id ASC`, participantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list admissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AdmissionRecord, 0)
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admission: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertIfAbsent inserts the record unless its key is taken. A concurrent
// insert of the same key waits for the other transaction and then yields.
func (r pgAdmissions) InsertIfAbsent(ctx context.Context, record *domain.AdmissionRecord) (*domain.AdmissionRecord, bool, error) {
	stored, err := scanAdmission(r.v.db.QueryRow(ctx, `
		INSERT INTO admission_records (`+admissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (participant_id, event_id, activity_id) DO NOTHING
		RETURNING `+admissionColumns,
		record.ParticipantID, record.EventID, record.ActivityID,
		record.Method, record.ConfirmedAt, record.ConfirmedBy))

	if err == nil {
		return &stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert admission: %w", err)
	}

	existing, err := r.Get(ctx, record.ParticipantID, record.EventID, record.ActivityID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("admission conflict without a stored record")
	}
	return existing, false, nil
}

// Audit

type pgAudit struct{ v *pgView }

// Append appends an audit entry
func (r pgAudit) Append(ctx context.Context, entry *domain.AuditEntry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("failed to encode audit detail: %w", err)
	}
	_, err = r.v.db.Exec(ctx, `
		INSERT INTO audit_log (id, kind, subject, actor, detail, at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Kind, entry.Subject, entry.Actor, detail, entry.At,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// List gets the latest audit entries, optionally of one kind
func (r pgAudit) List(ctx context.Context, kind domain.AuditKind, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.v.db.Query(ctx, `
		SELECT id, kind, subject, actor, detail, at
		FROM audit_log
		WHERE ($1::text = '' OR kind = $1::text)
		ORDER BY at DESC
		LIMIT $2`, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			e      domain.AuditEntry
			detail []byte
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Subject, &e.Actor, &detail, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode audit detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
