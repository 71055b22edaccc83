package service

import (
	"context"
	"testing"

	"be-guichet/internal/domain"
	apperrors "be-guichet/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantService_Register(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.participants.Register(ctx, domain.ParticipantInfo{
		FirstName: "  Moussa ",
		LastName:  "Ndiaye",
		Email:     " Moussa.Ndiaye@Example.COM ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Moussa", p.FirstName)
	assert.Equal(t, "moussa.ndiaye@example.com", p.Email)
	assert.Equal(t, domain.ParticipantActive, p.Status)

	_, err = f.participants.Register(ctx, domain.ParticipantInfo{
		FirstName: "Other",
		LastName:  "Person",
		Email:     "MOUSSA.NDIAYE@example.com",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestParticipantService_Register_Validation(t *testing.T) {
	tests := []struct {
		name string
		info domain.ParticipantInfo
	}{
		{"Missing first name", domain.ParticipantInfo{LastName: "Ndiaye", Email: "m@example.com"}},
		{"Bad email", domain.ParticipantInfo{FirstName: "Moussa", LastName: "Ndiaye", Email: "not-an-email"}},
		{"Short phone", domain.ParticipantInfo{FirstName: "Moussa", LastName: "Ndiaye", Email: "m@example.com", Phone: "12"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.participants.Register(context.Background(), tt.info)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestParticipantService_UpdateAndArchive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.participant(t, 1)
	other := f.participant(t, 2)

	updated, err := f.participants.Update(ctx, p.ID, domain.ParticipantInfo{
		FirstName: "Awa",
		LastName:  "Sow",
		Email:     "awa.sow@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sow", updated.LastName)
	assert.Equal(t, "awa.sow@example.com", updated.Email)

	_, err = f.participants.Update(ctx, p.ID, domain.ParticipantInfo{
		FirstName: "Awa",
		LastName:  "Sow",
		Email:     other.Email,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	archived, err := f.participants.Archive(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived())

	again, err := f.participants.Archive(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, archived.UpdatedAt, again.UpdatedAt)

	_, err = f.participants.Update(ctx, p.ID, domain.ParticipantInfo{FirstName: "Awa", LastName: "Sow", Email: "awa.sow@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	got, err := f.participants.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsArchived())

	_, err = f.participants.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
