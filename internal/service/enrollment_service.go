package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"be-guichet/internal/domain"
	"be-guichet/internal/repository"
	apperrors "be-guichet/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnrollmentService owns enrollments and their payment state. Every
// mutation runs in one store transaction holding the participant lock, and
// capacity is reserved under the activity lock.
type EnrollmentService struct {
	store   repository.Store
	catalog *CatalogService
	logger  *zap.Logger
}

func NewEnrollmentService(store repository.Store, catalog *CatalogService, logger *zap.Logger) *EnrollmentService {
	return &EnrollmentService{store: store, catalog: catalog, logger: logger}
}

// SelectActivities records the guichet selection of a participant. New
// pairs become unpaid enrollments, unpaid pairs are re-tiered, paid pairs
// are kept as they are. Asking for another tier on a paid pair rejects the
// whole selection.
func (s *EnrollmentService) SelectActivities(ctx context.Context, participantID string, selections []domain.Selection) (*domain.SelectionResult, error) {
	if len(selections) == 0 {
		return nil, apperrors.NewValidationError("at least one activity must be selected", nil)
	}
	seen := make(map[string]bool, len(selections))
	for i := range selections {
		if err := validateStruct(&selections[i]); err != nil {
			return nil, err
		}
		if seen[selections[i].ActivityID] {
			return nil, apperrors.NewValidationError("activity selected twice", map[string]interface{}{
				"activity_id": selections[i].ActivityID,
			})
		}
		seen[selections[i].ActivityID] = true
	}

	// a stable order keeps row locks acquired in the same order everywhere
	ordered := append([]domain.Selection(nil), selections...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ActivityID < ordered[j].ActivityID })

	result := &domain.SelectionResult{BatchID: uuid.NewString()}
	now := time.Now().UTC()

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := requireParticipant(ctx, tx, participantID)
		if err != nil {
			return err
		}
		if p.IsArchived() {
			return apperrors.NewInvalidStateError("participant is archived")
		}

		for _, sel := range ordered {
			activity, err := tx.Catalog().GetActivity(ctx, sel.ActivityID)
			if err != nil {
				return fmt.Errorf("failed to get activity: %w", err)
			}
			if activity == nil {
				return apperrors.NewNotFoundError("activity not found").WithDetail("activity_id", sel.ActivityID)
			}
			tier, ok := activity.Tier(sel.Tier)
			if !ok {
				return apperrors.NewNotFoundError(fmt.Sprintf("tier %s not found", sel.Tier)).WithDetail("activity_id", activity.ID)
			}

			existing, err := tx.Enrollments().Get(ctx, participantID, activity.ID)
			if err != nil {
				return fmt.Errorf("failed to get enrollment: %w", err)
			}

			var e domain.Enrollment
			switch {
			case existing != nil && existing.IsPaid():
				if domain.TierKey(existing.Tier) != domain.TierKey(tier.Name) {
					return apperrors.NewInvalidStateError("a paid enrollment cannot change tier").
						WithDetail("activity_id", activity.ID).
						WithDetail("tier", existing.Tier)
				}
				continue
			case existing != nil && existing.PaymentStatus == domain.PaymentUnpaid:
				e = *existing
				e.Tier = tier.Name
				e.Price = tier.Price
				e.BatchID = result.BatchID
			default:
				// new pair, or a refunded one selected again
				e = domain.Enrollment{
					ParticipantID: participantID,
					ActivityID:    activity.ID,
					EventID:       activity.EventID,
					Tier:          tier.Name,
					Price:         tier.Price,
					PaymentStatus: domain.PaymentUnpaid,
					BatchID:       result.BatchID,
					EnrolledAt:    now,
				}
			}

			if err := tx.Enrollments().Save(ctx, &e); err != nil {
				return fmt.Errorf("failed to save enrollment: %w", err)
			}
			result.TotalDue += e.Price
		}

		all, err := tx.Enrollments().ListByParticipant(ctx, participantID)
		if err != nil {
			return fmt.Errorf("failed to list enrollments: %w", err)
		}
		result.Enrollments = all
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Activities selected",
		zap.String("participant_id", participantID),
		zap.String("batch_id", result.BatchID),
		zap.Int("selections", len(selections)),
		zap.Int64("total_due", result.TotalDue))
	return result, nil
}

// ConfirmPayment marks the listed enrollments paid, reserving capacity for
// each. Already-paid entries are left untouched. The batch is all-or-nothing.
func (s *EnrollmentService) ConfirmPayment(ctx context.Context, participantID string, activityIDs []string) (*domain.PaymentResult, error) {
	ids := uniqueSorted(activityIDs)
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("at least one activity is required", nil)
	}

	var result *domain.PaymentResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireParticipant(ctx, tx, participantID); err != nil {
			return err
		}
		var err error
		result, err = s.confirm(ctx, tx, participantID, ids)
		return err
	})
	if err != nil {
		s.logPaymentFailure(participantID, "", err)
		return nil, err
	}

	s.logger.Info("Payment confirmed",
		zap.String("participant_id", participantID),
		zap.Int("confirmed", len(result.Confirmed)),
		zap.Int("already_paid", len(result.AlreadyPaid)))
	return result, nil
}

// ConfirmBatch confirms the payment of every enrollment stamped with
// batchID. It is the entry point of the payment gateway callback, which may
// be delivered more than once.
func (s *EnrollmentService) ConfirmBatch(ctx context.Context, batchID string) (*domain.PaymentResult, error) {
	if batchID == "" {
		return nil, apperrors.NewValidationError("batch_id is required", nil)
	}

	var (
		result        *domain.PaymentResult
		participantID string
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		batch, err := tx.Enrollments().ListByBatch(ctx, batchID)
		if err != nil {
			return fmt.Errorf("failed to list batch: %w", err)
		}
		if len(batch) == 0 {
			return apperrors.NewNotFoundError("payment batch not found")
		}
		participantID = batch[0].ParticipantID

		if _, err := requireParticipant(ctx, tx, participantID); err != nil {
			return err
		}

		// re-read under the participant lock
		batch, err = tx.Enrollments().ListByBatch(ctx, batchID)
		if err != nil {
			return fmt.Errorf("failed to list batch: %w", err)
		}
		ids := make([]string, 0, len(batch))
		for _, e := range batch {
			// a refund after payment settles that entry for good
			if e.PaymentStatus != domain.PaymentRefunded {
				ids = append(ids, e.ActivityID)
			}
		}

		result, err = s.confirm(ctx, tx, participantID, uniqueSorted(ids))
		return err
	})
	if err != nil {
		s.logPaymentFailure(participantID, batchID, err)
		return nil, err
	}

	s.logger.Info("Payment batch confirmed",
		zap.String("batch_id", batchID),
		zap.String("participant_id", participantID),
		zap.Int("confirmed", len(result.Confirmed)),
		zap.Int("already_paid", len(result.AlreadyPaid)))
	return result, nil
}

func (s *EnrollmentService) confirm(ctx context.Context, tx repository.Tx, participantID string, activityIDs []string) (*domain.PaymentResult, error) {
	result := &domain.PaymentResult{
		Confirmed:   make([]domain.Enrollment, 0, len(activityIDs)),
		AlreadyPaid: make([]domain.Enrollment, 0),
	}
	now := time.Now().UTC()

	for _, activityID := range activityIDs {
		e, err := tx.Enrollments().Get(ctx, participantID, activityID)
		if err != nil {
			return nil, fmt.Errorf("failed to get enrollment: %w", err)
		}
		if e == nil {
			return nil, apperrors.NewNotFoundError("enrollment not found").WithDetail("activity_id", activityID)
		}

		switch e.PaymentStatus {
		case domain.PaymentPaid:
			result.AlreadyPaid = append(result.AlreadyPaid, *e)
			continue
		case domain.PaymentRefunded:
			return nil, apperrors.NewInvalidStateError("enrollment was refunded").WithDetail("activity_id", activityID)
		}

		if err := s.catalog.reserve(ctx, tx, activityID, e.Tier, 1); err != nil {
			return nil, err
		}

		paidAt := now
		e.PaymentStatus = domain.PaymentPaid
		e.PaidAt = &paidAt
		if err := tx.Enrollments().Save(ctx, e); err != nil {
			return nil, fmt.Errorf("failed to save enrollment: %w", err)
		}
		result.Confirmed = append(result.Confirmed, *e)
	}
	return result, nil
}

// Refund reverses a paid enrollment and gives its slot back. A refund of an
// enrollment the participant was already admitted to still goes through but
// is flagged on the result and the audit trail.
func (s *EnrollmentService) Refund(ctx context.Context, participantID, activityID, actor string) (*domain.RefundResult, error) {
	var result *domain.RefundResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireParticipant(ctx, tx, participantID); err != nil {
			return err
		}

		e, err := tx.Enrollments().Get(ctx, participantID, activityID)
		if err != nil {
			return fmt.Errorf("failed to get enrollment: %w", err)
		}
		if e == nil {
			return apperrors.NewNotFoundError("enrollment not found")
		}
		if !e.IsPaid() {
			return apperrors.NewInvalidStateError(fmt.Sprintf("cannot refund an enrollment that is %s", e.PaymentStatus))
		}

		if err := s.catalog.release(ctx, tx, activityID, e.Tier, 1, actor); err != nil {
			return err
		}

		refundedAt := time.Now().UTC()
		e.PaymentStatus = domain.PaymentRefunded
		e.RefundedAt = &refundedAt
		if err := tx.Enrollments().Save(ctx, e); err != nil {
			return fmt.Errorf("failed to save enrollment: %w", err)
		}

		anomalies, err := s.admittedWithoutPayment(ctx, tx, e)
		if err != nil {
			return err
		}
		for _, record := range anomalies {
			entry := newAuditEntry(domain.AuditRefundAfterAdmission, participantID, actor, map[string]interface{}{
				"event_id":          record.EventID,
				"activity_id":       record.ActivityID,
				"refunded_activity": activityID,
				"method":            string(record.Method),
				"confirmed_at":      record.ConfirmedAt,
			})
			if err := tx.Audit().Append(ctx, entry); err != nil {
				return fmt.Errorf("failed to record refund anomaly: %w", err)
			}
		}

		result = &domain.RefundResult{Enrollment: *e, AdmissionAnomaly: len(anomalies) > 0}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AdmissionAnomaly {
		s.logger.Warn("Refund after admission",
			zap.String("participant_id", participantID),
			zap.String("activity_id", activityID))
	}
	s.logger.Info("Enrollment refunded",
		zap.String("participant_id", participantID),
		zap.String("activity_id", activityID),
		zap.String("actor", actor))
	return result, nil
}

// admittedWithoutPayment returns the admission records the refund of e
// leaves without a paid enrollment behind them: the activity record, and
// the event entry record when no other paid enrollment remains in the event.
func (s *EnrollmentService) admittedWithoutPayment(ctx context.Context, tx repository.Tx, e *domain.Enrollment) ([]domain.AdmissionRecord, error) {
	out := make([]domain.AdmissionRecord, 0, 2)

	record, err := tx.Admissions().Get(ctx, e.ParticipantID, e.EventID, e.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get admission: %w", err)
	}
	if record != nil {
		out = append(out, *record)
	}

	entry, err := tx.Admissions().Get(ctx, e.ParticipantID, e.EventID, domain.GlobalEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to get admission: %w", err)
	}
	if entry == nil {
		return out, nil
	}
	stillPaid, err := hasPaidInEvent(ctx, tx, e.ParticipantID, e.EventID)
	if err != nil {
		return nil, err
	}
	if !stillPaid {
		out = append(out, *entry)
	}
	return out, nil
}

// ListEnrollments returns every enrollment of a participant
func (s *EnrollmentService) ListEnrollments(ctx context.Context, participantID string) ([]domain.Enrollment, error) {
	if _, err := requireParticipant(ctx, s.store, participantID); err != nil {
		return nil, err
	}
	list, err := s.store.Enrollments().ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return list, nil
}

// EnrollableActivities lists the activities of an event for an edit
// session. Paid rows are selected and locked.
func (s *EnrollmentService) EnrollableActivities(ctx context.Context, participantID, eventID string) ([]domain.EnrollableActivity, error) {
	if _, err := requireParticipant(ctx, s.store, participantID); err != nil {
		return nil, err
	}
	activities, err := s.catalog.ListActivities(ctx, eventID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.store.Enrollments().ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	byActivity := make(map[string]domain.Enrollment, len(enrollments))
	for _, e := range enrollments {
		byActivity[e.ActivityID] = e
	}

	rows := make([]domain.EnrollableActivity, 0, len(activities))
	for _, a := range activities {
		row := domain.EnrollableActivity{Activity: a}
		if e, ok := byActivity[a.ID]; ok {
			row.Enrollment = &e
			row.Selected = e.PaymentStatus != domain.PaymentRefunded
			row.Locked = e.IsPaid()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *EnrollmentService) logPaymentFailure(participantID, batchID string, err error) {
	fields := []zap.Field{
		zap.String("participant_id", participantID),
		zap.String("batch_id", batchID),
		zap.Error(err),
	}
	switch {
	case isBusinessError(err):
		s.logger.Warn("Payment confirmation rejected", fields...)
	default:
		s.logger.Error("Payment confirmation failed", fields...)
	}
}

// hasPaidInEvent reports whether the participant holds a paid enrollment
// for any activity of the event
func hasPaidInEvent(ctx context.Context, tx repository.Tx, participantID, eventID string) (bool, error) {
	list, err := tx.Enrollments().ListByParticipant(ctx, participantID)
	if err != nil {
		return false, fmt.Errorf("failed to list enrollments: %w", err)
	}
	for _, e := range list {
		if e.EventID == eventID && e.IsPaid() {
			return true, nil
		}
	}
	return false, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
