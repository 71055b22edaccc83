package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"be-guichet/internal/domain"
	"be-guichet/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store        *repository.MemoryStore
	catalog      *CatalogService
	participants *ParticipantService
	enrollments  *EnrollmentService
	admissions   *AdmissionService
	surveys      *SurveyService
	audit        *AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMemoryStore(5 * time.Second)
	log := zap.NewNop()
	catalog := NewCatalogService(store, log)

	return &fixture{
		store:        store,
		catalog:      catalog,
		participants: NewParticipantService(store, log),
		enrollments:  NewEnrollmentService(store, catalog, log),
		admissions:   NewAdmissionService(store, log),
		surveys:      NewSurveyService(repository.NewMemorySurveyRepository(), store.Audit(), log),
		audit:        NewAuditService(store.Audit()),
	}
}

var fixtureStart = time.Date(2026, 11, 14, 9, 0, 0, 0, time.UTC)

func (f *fixture) event(t *testing.T, name string) *domain.Event {
	t.Helper()
	e, err := f.catalog.CreateEvent(context.Background(), &domain.Event{
		Name:     name,
		Location: "Palais des Congrès",
		StartsAt: fixtureStart,
		EndsAt:   fixtureStart.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) activity(t *testing.T, eventID, name string, capacity *int, tiers ...domain.Tier) *domain.Activity {
	t.Helper()
	a, err := f.catalog.CreateActivity(context.Background(), &domain.Activity{
		EventID:  eventID,
		Name:     name,
		Location: "Salle A",
		StartsAt: fixtureStart.Add(time.Hour),
		EndsAt:   fixtureStart.Add(2 * time.Hour),
		Capacity: capacity,
		Tiers:    tiers,
	})
	require.NoError(t, err)
	return a
}

// panelA has tiers Standard (cap 2, 1000) and VIP (cap 1, 2000)
func (f *fixture) panelA(t *testing.T, eventID string) *domain.Activity {
	t.Helper()
	return f.activity(t, eventID, "Panel A", domain.IntPtr(3),
		domain.Tier{Name: "Standard", Price: 1000, Capacity: domain.IntPtr(2)},
		domain.Tier{Name: "VIP", Price: 2000, Capacity: domain.IntPtr(1)},
	)
}

func (f *fixture) participant(t *testing.T, n int) *domain.Participant {
	t.Helper()
	p, err := f.participants.Register(context.Background(), domain.ParticipantInfo{
		FirstName: "Awa",
		LastName:  fmt.Sprintf("Diallo%d", n),
		Email:     fmt.Sprintf("awa.diallo%d@example.com", n),
		Phone:     "+221770000000",
	})
	require.NoError(t, err)
	return p
}

// paid selects and pays one activity for a participant
func (f *fixture) paid(t *testing.T, participantID, activityID, tier string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.enrollments.SelectActivities(ctx, participantID, []domain.Selection{{ActivityID: activityID, Tier: tier}})
	require.NoError(t, err)
	_, err = f.enrollments.ConfirmPayment(ctx, participantID, []string{activityID})
	require.NoError(t, err)
}

func (f *fixture) tier(t *testing.T, activityID, name string) domain.Tier {
	t.Helper()
	a, err := f.catalog.GetActivity(context.Background(), activityID)
	require.NoError(t, err)
	tier, ok := a.Tier(name)
	require.True(t, ok)
	return *tier
}
