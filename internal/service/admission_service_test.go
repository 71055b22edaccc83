package service

import (
	"context"
	"sync"
	"testing"

	"be-guichet/internal/domain"
	apperrors "be-guichet/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionService_ConfirmAdmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.event(t, "Forum")
	panel := f.panelA(t, event.ID)
	p := f.participant(t, 1)

	_, err := f.admissions.ConfirmAdmission(ctx, p.ID, event.ID, panel.ID, domain.MethodPhysical, "op-1")
	assert.ErrorIs(t, err, apperrors.ErrNotEligible)

	_, err = f.enrollments.SelectActivities(ctx, p.ID, []domain.Selection{{ActivityID: panel.ID, Tier: "Standard"}})
	require.NoError(t, err)
	_, err = f.admissions.ConfirmAdmission(ctx, p.ID, event.ID, panel.ID, domain.MethodPhysical, "op-1")
	assert.ErrorIs(t, err, apperrors.ErrNotEligible, "an unpaid enrollment is not enough")

	_, err = f.enrollments.ConfirmPayment(ctx, p.ID, []string{panel.ID})
	require.NoError(t, err)

	first, err := f.admissions.ConfirmAdmission(ctx, p.ID, event.ID, panel.ID, domain.MethodPhysical, "op-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPhysical, first.Method)
	assert.Equal(t, "op-1", first.ConfirmedBy)

	// double scan, even with another method, returns the stored record
	second, err := f.admissions.ConfirmAdmission(ctx, p.ID, event.ID, panel.ID, domain.MethodOnline, "op-2")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	records, err := f.store.Admissions().ListByParticipant(ctx, p.ID, event.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAdmissionService_ConfirmAdmission_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.event(t, "Forum")
	other := f.event(t, "Salon")
	panel := f.panelA(t, event.ID)
	p := f.participant(t, 1)
	f.paid(t, p.ID, panel.ID, "VIP")

	tests := []struct {
		name          string
		participantID string
		eventID       string
		activityID    string
		method        domain.AdmissionMethod
		expectErr     error
	}{
		{"Method none", p.ID, event.ID, panel.ID, domain.MethodNone, apperrors.ErrValidation},
		{"Free-form method", p.ID, event.ID, panel.ID, domain.AdmissionMethod("badge"), apperrors.ErrValidation},
		{"Unknown participant", "missing", event.ID, panel.ID, domain.MethodPhysical, apperrors.ErrNotFound},
		{"Unknown event", p.ID, "missing", panel.ID, domain.MethodPhysical, apperrors.ErrNotFound},
		{"Activity of another event", p.ID, other.ID, panel.ID, domain.MethodPhysical, apperrors.ErrNotFound},
		{"Global entry of another event", p.ID, other.ID, domain.GlobalEntry, domain.MethodPhysical, apperrors.ErrNotEligible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.admissions.ConfirmAdmission(ctx, tt.participantID, tt.eventID, tt.activityID, tt.method, "op-1")
			assert.ErrorIs(t, err, tt.expectErr)
		})
	}
}

func TestAdmissionService_ConcurrentScansCollapse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.event(t, "Forum")
	panel := f.panelA(t, event.ID)
	p := f.participant(t, 1)
	f.paid(t, p.ID, panel.ID, "VIP")

	const n = 16
	results := make([]*domain.AdmissionRecord, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			method := domain.MethodPhysical
			if i%2 == 1 {
				method = domain.MethodOnline
			}
			results[i], errs[i] = f.admissions.ConfirmAdmission(ctx, p.ID, event.ID, panel.ID, method, "scanner")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}

	records, err := f.store.Admissions().ListByParticipant(ctx, p.ID, event.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAdmissionService_GlobalEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.event(t, "Forum")
	panel := f.panelA(t, event.ID)
	workshop := f.activity(t, event.ID, "Atelier", nil, domain.Tier{Name: "Standard", Price: 300})
	p := f.participant(t, 1)

	eligible, err := f.admissions.IsEligible(ctx, p.ID, event.ID, domain.GlobalEntry)
	require.NoError(t, err)
	assert.False(t, eligible)

	f.paid(t, p.ID, workshop.ID, "Standard")

	eligible, err = f.admissions.IsEligible(ctx, p.ID, event.ID, domain.GlobalEntry)
	require.NoError(t, err)
	assert.True(t, eligible)

	eligible, err = f.admissions.IsEligible(ctx, p.ID, event.ID, panel.ID)
	require.NoError(t, err)
	assert.False(t, eligible)

	record, err := f.admissions.ConfirmAdmission(ctx, p.ID, event.ID, domain.GlobalEntry, domain.MethodOnline, "")
	require.NoError(t, err)
	assert.True(t, record.IsGlobal())
	assert.Equal(t, "anonymous", record.ConfirmedBy)

	status, err := f.admissions.StatusOf(ctx, p.ID, event.ID, domain.GlobalEntry)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodOnline, status)

	status, err = f.admissions.StatusOf(ctx, p.ID, event.ID, workshop.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodNone, status)
}

func TestAdmissionService_StatusOf_UnknownScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.event(t, "Forum")
	other := f.event(t, "Salon")
	panel := f.panelA(t, event.ID)
	p := f.participant(t, 1)

	tests := []struct {
		name          string
		participantID string
		eventID       string
		activityID    string
	}{
		{name: "unknown participant", participantID: "missing", eventID: event.ID, activityID: domain.GlobalEntry},
		{name: "unknown event", participantID: p.ID, eventID: "missing", activityID: domain.GlobalEntry},
		{name: "unknown activity", participantID: p.ID, eventID: event.ID, activityID: "missing"},
		{name: "activity of another event", participantID: p.ID, eventID: other.ID, activityID: panel.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := f.admissions.StatusOf(ctx, tt.participantID, tt.eventID, tt.activityID)
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
			assert.Equal(t, domain.MethodNone, status)
		})
	}
}

func TestAdmissionService_EventAdmissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.event(t, "Forum")
	panel := f.panelA(t, event.ID)
	workshop := f.activity(t, event.ID, "Atelier", nil, domain.Tier{Name: "Standard", Price: 300})
	p := f.participant(t, 1)

	f.paid(t, p.ID, panel.ID, "Standard")
	_, err := f.admissions.ConfirmAdmission(ctx, p.ID, event.ID, panel.ID, domain.MethodPhysical, "op-1")
	require.NoError(t, err)

	rows, err := f.admissions.EventAdmissions(ctx, p.ID, event.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, domain.GlobalEntry, rows[0].ActivityID)
	assert.Equal(t, "Forum", rows[0].ActivityName)
	assert.Equal(t, domain.MethodNone, rows[0].Status)
	assert.True(t, rows[0].CanConfirm)

	byID := make(map[string]domain.AdmissionStatus)
	for _, r := range rows[1:] {
		byID[r.ActivityID] = r
	}
	assert.Equal(t, domain.MethodPhysical, byID[panel.ID].Status)
	assert.True(t, byID[panel.ID].CanConfirm)
	require.NotNil(t, byID[panel.ID].ConfirmedAt)
	assert.Equal(t, "op-1", byID[panel.ID].ConfirmedBy)

	assert.Equal(t, domain.MethodNone, byID[workshop.ID].Status)
	assert.False(t, byID[workshop.ID].CanConfirm)
	assert.Nil(t, byID[workshop.ID].ConfirmedAt)
}

func TestAdmissionService_ArchivedParticipant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.event(t, "Forum")
	panel := f.panelA(t, event.ID)
	workshop := f.activity(t, event.ID, "Atelier", nil, domain.Tier{Name: "Standard", Price: 300})
	p := f.participant(t, 1)
	f.paid(t, p.ID, panel.ID, "Standard")
	f.paid(t, p.ID, workshop.ID, "Standard")

	first, err := f.admissions.ConfirmAdmission(ctx, p.ID, event.ID, panel.ID, domain.MethodPhysical, "op-1")
	require.NoError(t, err)

	_, err = f.participants.Archive(ctx, p.ID)
	require.NoError(t, err)

	// history stays readable and replays still succeed
	replay, err := f.admissions.ConfirmAdmission(ctx, p.ID, event.ID, panel.ID, domain.MethodPhysical, "op-1")
	require.NoError(t, err)
	assert.Equal(t, first, replay)

	_, err = f.admissions.ConfirmAdmission(ctx, p.ID, event.ID, workshop.ID, domain.MethodPhysical, "op-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}
