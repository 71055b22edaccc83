package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"be-guichet/internal/domain"
	"be-guichet/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPostgres connects to TEST_DATABASE_URL and recreates the schema.
// The tests are skipped when the variable is not set.
func setupPostgres(t *testing.T) *database.PostgresDB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgresDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Drop(ctx))
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestPostgresStore_CatalogRoundTrip(t *testing.T) {
	db := setupPostgres(t)
	store := NewPostgresStore(db, time.Second)
	ctx := context.Background()
	seeded := seedCatalog(t, store)

	a, err := store.Catalog().GetActivity(ctx, seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, a)
	require.Len(t, a.Tiers, 2)
	assert.Equal(t, "Standard", a.Tiers[0].Name)
	assert.Equal(t, 2, *a.Tiers[0].Capacity)
	assert.Equal(t, 3, *a.Capacity)

	list, err := store.Catalog().ListActivities(ctx, "ev-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	missing, err := store.Catalog().GetActivity(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.ErrorIs(t, store.Catalog().CreateActivity(ctx, seeded), ErrDuplicate)
}

func TestPostgresStore_WithinTxRollsBack(t *testing.T) {
	db := setupPostgres(t)
	store := NewPostgresStore(db, time.Second)
	ctx := context.Background()
	seedCatalog(t, store)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Catalog().SetTierReserved(ctx, "act-1", "Standard", 2); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	a, err := store.Catalog().GetActivity(ctx, "act-1")
	require.NoError(t, err)
	assert.Equal(t, 0, a.Reserved())
}

func TestPostgresStore_LedgerRoundTrip(t *testing.T) {
	db := setupPostgres(t)
	store := NewPostgresStore(db, time.Second)
	ctx := context.Background()
	seedCatalog(t, store)

	paidAt := testStart.Add(time.Minute)
	e := &domain.Enrollment{
		ParticipantID: "p-1", ActivityID: "act-1", EventID: "ev-1", Tier: "VIP", Price: 2000,
		PaymentStatus: domain.PaymentUnpaid, BatchID: "b-1", EnrolledAt: testStart,
	}
	require.NoError(t, store.Enrollments().Save(ctx, e))

	e.PaymentStatus = domain.PaymentPaid
	e.PaidAt = &paidAt
	require.NoError(t, store.Enrollments().Save(ctx, e))

	batch, err := store.Enrollments().ListByBatch(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, domain.PaymentPaid, batch[0].PaymentStatus)
	require.NotNil(t, batch[0].PaidAt)
	assert.True(t, paidAt.Equal(*batch[0].PaidAt))

	record, created, err := store.Admissions().InsertIfAbsent(ctx, &domain.AdmissionRecord{
		ParticipantID: "p-1", EventID: "ev-1", ActivityID: domain.GlobalEntry,
		Method: domain.MethodOnline, ConfirmedAt: testStart, ConfirmedBy: "op-1",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, record.IsGlobal())

	again, created, err := store.Admissions().InsertIfAbsent(ctx, &domain.AdmissionRecord{
		ParticipantID: "p-1", EventID: "ev-1", ActivityID: domain.GlobalEntry,
		Method: domain.MethodPhysical, ConfirmedAt: testStart.Add(time.Hour), ConfirmedBy: "op-2",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, domain.MethodOnline, again.Method)
	assert.Equal(t, "op-1", again.ConfirmedBy)

	require.NoError(t, store.Audit().Append(ctx, &domain.AuditEntry{
		ID: "au-1", Kind: domain.AuditTallyCorrection, Subject: "q-1", Actor: "op-1",
		Detail: map[string]interface{}{"previous": 4}, At: testStart,
	}))
	entries, err := store.Audit().List(ctx, domain.AuditTallyCorrection, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(4), entries[0].Detail["previous"])
}

func TestPostgresStore_ConcurrentAdmissionsCollapse(t *testing.T) {
	db := setupPostgres(t)
	store := NewPostgresStore(db, 5*time.Second)
	ctx := context.Background()
	seedCatalog(t, store)

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
				_, ok, err := tx.Admissions().InsertIfAbsent(ctx, &domain.AdmissionRecord{
					ParticipantID: "p-1", EventID: "ev-1", ActivityID: "act-1",
					Method: domain.MethodPhysical, ConfirmedAt: time.Now().UTC(), ConfirmedBy: "scanner",
				})
				if ok {
					mu.Lock()
					created++
					mu.Unlock()
				}
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestPostgresSurveyRepository(t *testing.T) {
	db := setupPostgres(t)
	repo := NewPostgresSurveyRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateQuestion(ctx, testQuestion("q-1")))
	assert.ErrorIs(t, repo.CreateQuestion(ctx, testQuestion("q-1")), ErrDuplicate)

	q, err := repo.GetQuestion(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Oui", "Non", "Sans avis"}, q.Options)

	v, err := repo.Increment(ctx, "q-1", "Oui")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	previous, err := repo.SetCount(ctx, "q-1", "Oui", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), previous)

	counts, err := repo.Counts(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"Oui": 5, "Non": 0, "Sans avis": 0}, counts)

	_, err = repo.Increment(ctx, "q-1", "Peut-être")
	assert.Error(t, err)
}
