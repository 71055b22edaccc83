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

type ParticipantService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewParticipantService(store repository.Store, logger *zap.Logger) *ParticipantService {
	return &ParticipantService{store: store, logger: logger}
}

func normalizeInfo(info *domain.ParticipantInfo) {
	info.FirstName = strings.TrimSpace(info.FirstName)
	info.LastName = strings.TrimSpace(info.LastName)
	info.Email = strings.ToLower(strings.TrimSpace(info.Email))
	info.Phone = strings.TrimSpace(info.Phone)
}

// Register creates a participant. The email is the natural key: a second
// registration with the same email is rejected.
func (s *ParticipantService) Register(ctx context.Context, info domain.ParticipantInfo) (*domain.Participant, error) {
	normalizeInfo(&info)
	if err := validateStruct(&info); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &domain.Participant{
		ID:        uuid.NewString(),
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Email:     info.Email,
		Phone:     info.Phone,
		Status:    domain.ParticipantActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Participants().Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewInvalidStateError("a participant with this email is already registered")
		}
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	s.logger.Info("Participant registered", zap.String("participant_id", p.ID))
	return p, nil
}

// Get returns a participant, archived or not
func (s *ParticipantService) Get(ctx context.Context, id string) (*domain.Participant, error) {
	p, err := s.store.Participants().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, apperrors.NewNotFoundError("participant not found")
	}
	return p, nil
}

// Update replaces the identity fields of an active participant
func (s *ParticipantService) Update(ctx context.Context, id string, info domain.ParticipantInfo) (*domain.Participant, error) {
	normalizeInfo(&info)
	if err := validateStruct(&info); err != nil {
		return nil, err
	}

	var updated *domain.Participant
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := requireParticipant(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.IsArchived() {
			return apperrors.NewInvalidStateError("participant is archived")
		}

		p.FirstName = info.FirstName
		p.LastName = info.LastName
		p.Email = info.Email
		p.Phone = info.Phone
		p.UpdatedAt = time.Now().UTC()

		if err := tx.Participants().Update(ctx, p); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewInvalidStateError("a participant with this email is already registered")
			}
			return fmt.Errorf("failed to update participant: %w", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Archive soft-deletes a participant. Archiving twice is a no-op.
func (s *ParticipantService) Archive(ctx context.Context, id string) (*domain.Participant, error) {
	var archived *domain.Participant
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := requireParticipant(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.IsArchived() {
			archived = p
			return nil
		}

		p.Status = domain.ParticipantArchived
		p.UpdatedAt = time.Now().UTC()
		if err := tx.Participants().Update(ctx, p); err != nil {
			return fmt.Errorf("failed to archive participant: %w", err)
		}
		archived = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Participant archived", zap.String("participant_id", id))
	return archived, nil
}

// requireParticipant loads and, inside a transaction, locks a participant
func requireParticipant(ctx context.Context, tx repository.Tx, id string) (*domain.Participant, error) {
	p, err := tx.Participants().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, apperrors.NewNotFoundError("participant not found")
	}
	return p, nil
}
