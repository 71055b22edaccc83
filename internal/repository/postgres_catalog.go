package repository

import (
	"context"
	"errors"
	"fmt"

	"be-guichet/internal/domain"

	"github.com/jackc/pgx/v5"
)

// CreateEvent creates a new event
func (v *pgView) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := v.db.Exec(ctx, `
		INSERT INTO events (id, name, location, starts_at, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.Name, event.Location, event.StartsAt, event.EndsAt, event.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetEvent gets an event by ID
func (v *pgView) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	var e domain.Event
	err := v.db.QueryRow(ctx, `
		SELECT id, name, location, starts_at, ends_at, created_at
		FROM events
		WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.Location, &e.StartsAt, &e.EndsAt, &e.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

// CreateActivity creates an activity and its tiers in one statement batch
func (v *pgView) CreateActivity(ctx context.Context, activity *domain.Activity) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO activities (id, event_id, name, location, starts_at, ends_at, capacity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		activity.ID, activity.EventID, activity.Name, activity.Location,
		activity.StartsAt, activity.EndsAt, activity.Capacity, activity.CreatedAt,
	)
	for i, t := range activity.Tiers {
		batch.Queue(`
			INSERT INTO activity_tiers (activity_id, name, name_key, position, price, capacity, reserved)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			activity.ID, t.Name, domain.TierKey(t.Name), i, t.Price, t.Capacity, t.Reserved,
		)
	}

	// a batch runs as one implicit transaction
	results := v.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to create activity: %w", err)
		}
	}
	return nil
}

// GetActivity gets an activity with its tiers. Inside a transaction the
// activity row stays locked until commit.
func (v *pgView) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	var a domain.Activity
	err := v.db.QueryRow(ctx, `
		SELECT id, event_id, name, location, starts_at, ends_at, capacity, created_at
		FROM activities
		WHERE id = $1`+v.forUpdate(), id,
	).Scan(&a.ID, &a.EventID, &a.Name, &a.Location, &a.StartsAt, &a.EndsAt, &a.Capacity, &a.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	tiers, err := v.tiersOf(ctx, []string{a.ID})
	if err != nil {
		return nil, err
	}
	a.Tiers = tiers[a.ID]
	return &a, nil
}

// ListActivities gets the activities of an event
func (v *pgView) ListActivities(ctx context.Context, eventID string) ([]domain.Activity, error) {
	rows, err := v.db.Query(ctx, `
		SELECT id, event_id, name, location, starts_at, ends_at, capacity, created_at
		FROM activities
		WHERE event_id = $1
		ORDER BY starts_at ASC, name ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := make([]domain.Activity, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.EventID, &a.Name, &a.Location, &a.StartsAt, &a.EndsAt, &a.Capacity, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
		ids = append(ids, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	tiers, err := v.tiersOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range activities {
		activities[i].Tiers = tiers[activities[i].ID]
	}
	return activities, nil
}

// SetTierReserved overwrites the reserved counter of a tier
func (v *pgView) SetTierReserved(ctx context.Context, activityID, tier string, reserved int) error {
	tag, err := v.db.Exec(ctx, `
		UPDATE activity_tiers SET reserved = $3
		WHERE activity_id = $1 AND name_key = $2`,
		activityID, domain.TierKey(tier), reserved,
	)
	if err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tier %s not found on activity %s", tier, activityID)
	}
	return nil
}

func (v *pgView) tiersOf(ctx context.Context, activityIDs []string) (map[string][]domain.Tier, error) {
	out := make(map[string][]domain.Tier, len(activityIDs))
	if len(activityIDs) == 0 {
		return out, nil
	}

	rows, err := v.db.Query(ctx, `
		SELECT activity_id, name, price, capacity, reserved
		FROM activity_tiers
		WHERE activity_id = ANY($1)
		ORDER BY activity_id, position`, activityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			activityID string
			t          domain.Tier
		)
		if err := rows.Scan(&activityID, &t.Name, &t.Price, &t.Capacity, &t.Reserved); err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		out[activityID] = append(out[activityID], t)
	}
	return out, rows.Err()
}
