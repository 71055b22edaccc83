package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"be-guichet/internal/domain"
	"be-guichet/internal/repository"
	apperrors "be-guichet/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CatalogService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewCatalogService(store repository.Store, logger *zap.Logger) *CatalogService {
	return &CatalogService{store: store, logger: logger}
}

// CreateEvent validates and stores a new event
func (s *CatalogService) CreateEvent(ctx context.Context, event *domain.Event) (*domain.Event, error) {
	event.Name = strings.TrimSpace(event.Name)
	if err := validateStruct(event); err != nil {
		return nil, err
	}
	if err := checkWindow(event.StartsAt, event.EndsAt); err != nil {
		return nil, err
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.CreatedAt = time.Now().UTC()

	if err := s.store.Catalog().CreateEvent(ctx, event); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewValidationError("event already exists", map[string]interface{}{"id": event.ID})
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.logger.Info("Event created", zap.String("event_id", event.ID), zap.String("name", event.Name))
	return event, nil
}

// GetEvent returns an event or NotFound
func (s *CatalogService) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	event, err := s.store.Catalog().GetEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.NewNotFoundError("event not found")
	}
	return event, nil
}

// CreateActivity validates the tier layout and stores a new activity
func (s *CatalogService) CreateActivity(ctx context.Context, activity *domain.Activity) (*domain.Activity, error) {
	activity.Name = strings.TrimSpace(activity.Name)
	for i := range activity.Tiers {
		activity.Tiers[i].Name = strings.TrimSpace(activity.Tiers[i].Name)
		activity.Tiers[i].Reserved = 0
	}

	if err := validateStruct(activity); err != nil {
		return nil, err
	}
	if err := checkWindow(activity.StartsAt, activity.EndsAt); err != nil {
		return nil, err
	}
	if err := checkTiers(activity); err != nil {
		return nil, err
	}

	if _, err := s.GetEvent(ctx, activity.EventID); err != nil {
		return nil, err
	}

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	activity.CreatedAt = time.Now().UTC()

	if err := s.store.Catalog().CreateActivity(ctx, activity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewValidationError("activity already exists", map[string]interface{}{"id": activity.ID})
		}
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	s.logger.Info("Activity created",
		zap.String("activity_id", activity.ID),
		zap.String("event_id", activity.EventID),
		zap.Int("tiers", len(activity.Tiers)))
	return activity, nil
}

// GetActivity returns an activity or NotFound
func (s *CatalogService) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	activity, err := s.store.Catalog().GetActivity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	if activity == nil {
		return nil, apperrors.NewNotFoundError("activity not found")
	}
	return activity, nil
}

// ListActivities returns the activities of an event ordered by start time
func (s *CatalogService) ListActivities(ctx context.Context, eventID string) ([]domain.Activity, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	activities, err := s.store.Catalog().ListActivities(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

// GetTiers returns the ordered tiers of an activity
func (s *CatalogService) GetTiers(ctx context.Context, activityID string) ([]domain.Tier, error) {
	activity, err := s.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	return activity.Tiers, nil
}

// ReserveCapacity takes count slots of a tier in its own transaction
func (s *CatalogService) ReserveCapacity(ctx context.Context, activityID, tier string, count int) error {
	return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return s.reserve(ctx, tx, activityID, tier, count)
	})
}

// ReleaseCapacity gives back count slots of a tier in its own transaction
func (s *CatalogService) ReleaseCapacity(ctx context.Context, activityID, tier string, count int, actor string) error {
	return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return s.release(ctx, tx, activityID, tier, count, actor)
	})
}

// reserve checks and takes capacity under the activity lock held by tx
func (s *CatalogService) reserve(ctx context.Context, tx repository.Tx, activityID, tierName string, count int) error {
	if count <= 0 {
		return apperrors.NewValidationError("count must be positive", map[string]interface{}{"count": count})
	}

	activity, tier, err := lockTier(ctx, tx, activityID, tierName)
	if err != nil {
		return err
	}

	if tier.Capacity != nil && tier.Remaining() < count {
		return apperrors.NewCapacityExceededError(fmt.Sprintf("tier %s of %s is sold out", tier.Name, activity.Name)).
			WithDetail("activity_id", activity.ID).
			WithDetail("tier", tier.Name).
			WithDetail("remaining", tier.Remaining())
	}
	if activity.Capacity != nil && activity.Remaining() < count {
		return apperrors.NewCapacityExceededError(fmt.Sprintf("%s is sold out", activity.Name)).
			WithDetail("activity_id", activity.ID).
			WithDetail("remaining", activity.Remaining())
	}

	if err := tx.Catalog().SetTierReserved(ctx, activity.ID, tier.Name, tier.Reserved+count); err != nil {
		return fmt.Errorf("failed to reserve capacity: %w", err)
	}
	return nil
}

// release gives back capacity, never dropping below zero reserved. A clamp
// is recorded on the audit trail.
func (s *CatalogService) release(ctx context.Context, tx repository.Tx, activityID, tierName string, count int, actor string) error {
	if count <= 0 {
		return apperrors.NewValidationError("count must be positive", map[string]interface{}{"count": count})
	}

	activity, tier, err := lockTier(ctx, tx, activityID, tierName)
	if err != nil {
		return err
	}

	reserved := tier.Reserved - count
	if reserved < 0 {
		s.logger.Warn("Capacity release clamped",
			zap.String("activity_id", activity.ID),
			zap.String("tier", tier.Name),
			zap.Int("reserved", tier.Reserved),
			zap.Int("release", count))

		entry := newAuditEntry(domain.AuditCapacityReleaseClamped, activity.ID, actor, map[string]interface{}{
			"tier":     tier.Name,
			"reserved": tier.Reserved,
			"release":  count,
		})
		if err := tx.Audit().Append(ctx, entry); err != nil {
			return fmt.Errorf("failed to record clamp: %w", err)
		}
		reserved = 0
	}

	if err := tx.Catalog().SetTierReserved(ctx, activity.ID, tier.Name, reserved); err != nil {
		return fmt.Errorf("failed to release capacity: %w", err)
	}
	return nil
}

func lockTier(ctx context.Context, tx repository.Tx, activityID, tierName string) (*domain.Activity, *domain.Tier, error) {
	activity, err := tx.Catalog().GetActivity(ctx, activityID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get activity: %w", err)
	}
	if activity == nil {
		return nil, nil, apperrors.NewNotFoundError("activity not found")
	}
	tier, ok := activity.Tier(tierName)
	if !ok {
		return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("tier %s not found", tierName))
	}
	return activity, tier, nil
}

func checkWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperrors.NewValidationError("start and end are required", nil)
	}
	if end.Before(start) {
		return apperrors.NewValidationError("end must not be before start", nil)
	}
	return nil
}

// checkTiers enforces unique tier names and that bounded tiers fit in a
// bounded activity
func checkTiers(activity *domain.Activity) error {
	seen := make(map[string]bool, len(activity.Tiers))
	sum := 0
	allBounded := true
	for _, t := range activity.Tiers {
		key := domain.TierKey(t.Name)
		if seen[key] {
			return apperrors.NewValidationError("tier names must be unique", map[string]interface{}{"tier": t.Name})
		}
		seen[key] = true

		if t.Capacity == nil {
			allBounded = false
			continue
		}
		if activity.Capacity != nil && *t.Capacity > *activity.Capacity {
			return apperrors.NewValidationError("tier capacity exceeds activity capacity", map[string]interface{}{"tier": t.Name})
		}
		sum += *t.Capacity
	}

	if activity.Capacity != nil && allBounded && sum > *activity.Capacity {
		return apperrors.NewValidationError("tier capacities exceed activity capacity", map[string]interface{}{
			"capacity":      *activity.Capacity,
			"tier_capacity": sum,
		})
	}
	return nil
}
