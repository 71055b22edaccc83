package service

import (
	"context"
	"fmt"
	"time"

	"be-guichet/internal/domain"
	"be-guichet/internal/repository"
	apperrors "be-guichet/pkg/errors"

	"go.uber.org/zap"
)

// AdmissionService records émargement. Eligibility is never stored: it is
// derived from paid enrollments on every call.
type AdmissionService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewAdmissionService(store repository.Store, logger *zap.Logger) *AdmissionService {
	return &AdmissionService{store: store, logger: logger}
}

// IsEligible reports whether the participant may be checked in. For an
// activity it needs a paid enrollment for that activity; for global entry
// (empty activityID) a paid enrollment for any activity of the event.
func (s *AdmissionService) IsEligible(ctx context.Context, participantID, eventID, activityID string) (bool, error) {
	if _, err := requireParticipant(ctx, s.store, participantID); err != nil {
		return false, err
	}
	if err := requireScope(ctx, s.store, eventID, activityID); err != nil {
		return false, err
	}
	return isEligible(ctx, s.store, participantID, eventID, activityID)
}

// ConfirmAdmission checks the participant in once. A repeated call, even a
// concurrent one, returns the stored record unchanged.
func (s *AdmissionService) ConfirmAdmission(ctx context.Context, participantID, eventID, activityID string, method domain.AdmissionMethod, confirmedBy string) (*domain.AdmissionRecord, error) {
	if !method.Valid() {
		return nil, apperrors.NewValidationError("method must be physical or online", map[string]interface{}{
			"method": string(method),
		})
	}
	if confirmedBy == "" {
		confirmedBy = "anonymous"
	}

	var (
		record  *domain.AdmissionRecord
		created bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := requireParticipant(ctx, tx, participantID)
		if err != nil {
			return err
		}

		existing, err := tx.Admissions().Get(ctx, participantID, eventID, activityID)
		if err != nil {
			return fmt.Errorf("failed to get admission: %w", err)
		}
		if existing != nil {
			record = existing
			return nil
		}

		if p.IsArchived() {
			return apperrors.NewInvalidStateError("participant is archived")
		}
		if err := requireScope(ctx, tx, eventID, activityID); err != nil {
			return err
		}

		eligible, err := isEligible(ctx, tx, participantID, eventID, activityID)
		if err != nil {
			return err
		}
		if !eligible {
			return apperrors.NewNotEligibleError("no paid enrollment for this admission").
				WithDetail("activity_id", activityID)
		}

		record, created, err = tx.Admissions().InsertIfAbsent(ctx, &domain.AdmissionRecord{
			ParticipantID: participantID,
			EventID:       eventID,
			ActivityID:    activityID,
			Method:        method,
			ConfirmedAt:   time.Now().UTC(),
			ConfirmedBy:   confirmedBy,
		})
		if err != nil {
			return fmt.Errorf("failed to store admission: %w", err)
		}
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			s.logger.Warn("Admission refused",
				zap.String("participant_id", participantID),
				zap.String("event_id", eventID),
				zap.String("activity_id", activityID),
				zap.Error(err))
		}
		return nil, err
	}

	if created {
		s.logger.Info("Admission confirmed",
			zap.String("participant_id", participantID),
			zap.String("event_id", eventID),
			zap.String("activity_id", activityID),
			zap.String("method", string(record.Method)),
			zap.String("confirmed_by", confirmedBy))
	} else {
		s.logger.Debug("Admission already confirmed",
			zap.String("participant_id", participantID),
			zap.String("activity_id", activityID),
			zap.Time("confirmed_at", record.ConfirmedAt))
	}
	return record, nil
}

// StatusOf returns none, physical or online
func (s *AdmissionService) StatusOf(ctx context.Context, participantID, eventID, activityID string) (domain.AdmissionMethod, error) {
	if _, err := requireParticipant(ctx, s.store, participantID); err != nil {
		return domain.MethodNone, err
	}
	if err := requireScope(ctx, s.store, eventID, activityID); err != nil {
		return domain.MethodNone, err
	}

	record, err := s.store.Admissions().Get(ctx, participantID, eventID, activityID)
	if err != nil {
		return domain.MethodNone, fmt.Errorf("failed to get admission: %w", err)
	}
	if record == nil {
		return domain.MethodNone, nil
	}
	return record.Method, nil
}

// EventAdmissions returns the global entry row followed by one row per
// activity of the event
func (s *AdmissionService) EventAdmissions(ctx context.Context, participantID, eventID string) ([]domain.AdmissionStatus, error) {
	if _, err := requireParticipant(ctx, s.store, participantID); err != nil {
		return nil, err
	}
	event, err := s.store.Catalog().GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.NewNotFoundError("event not found")
	}

	activities, err := s.store.Catalog().ListActivities(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	records, err := s.store.Admissions().ListByParticipant(ctx, participantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list admissions: %w", err)
	}
	enrollments, err := s.store.Enrollments().ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	byActivity := make(map[string]domain.AdmissionRecord, len(records))
	for _, r := range records {
		byActivity[r.ActivityID] = r
	}
	paid := make(map[string]bool)
	anyPaid := false
	for _, e := range enrollments {
		if e.EventID == eventID && e.IsPaid() {
			paid[e.ActivityID] = true
			anyPaid = true
		}
	}

	rows := make([]domain.AdmissionStatus, 0, len(activities)+1)
	rows = append(rows, statusRow(domain.GlobalEntry, event.Name, anyPaid, byActivity))
	for _, a := range activities {
		rows = append(rows, statusRow(a.ID, a.Name, paid[a.ID], byActivity))
	}
	return rows, nil
}

func statusRow(activityID, name string, eligible bool, records map[string]domain.AdmissionRecord) domain.AdmissionStatus {
	row := domain.AdmissionStatus{
		ActivityID:   activityID,
		ActivityName: name,
		Status:       domain.MethodNone,
		CanConfirm:   eligible,
	}
	if r, ok := records[activityID]; ok {
		confirmedAt := r.ConfirmedAt
		row.Status = r.Method
		row.ConfirmedAt = &confirmedAt
		row.ConfirmedBy = r.ConfirmedBy
	}
	return row
}

func isEligible(ctx context.Context, tx repository.Tx, participantID, eventID, activityID string) (bool, error) {
	if activityID == domain.GlobalEntry {
		return hasPaidInEvent(ctx, tx, participantID, eventID)
	}
	e, err := tx.Enrollments().Get(ctx, participantID, activityID)
	if err != nil {
		return false, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e != nil && e.IsPaid() && e.EventID == eventID, nil
}

// requireScope checks that the event exists and, unless this is global
// entry, that the activity belongs to it
func requireScope(ctx context.Context, tx repository.Tx, eventID, activityID string) error {
	event, err := tx.Catalog().GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return apperrors.NewNotFoundError("event not found")
	}
	if activityID == domain.GlobalEntry {
		return nil
	}

	activity, err := tx.Catalog().GetActivity(ctx, activityID)
	if err != nil {
		return fmt.Errorf("failed to get activity: %w", err)
	}
	if activity == nil || activity.EventID != eventID {
		return apperrors.NewNotFoundError("activity not found in this event")
	}
	return nil
}
