package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"be-guichet/pkg/database"
	apperrors "be-guichet/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is satisfied by both the pool and a transaction
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgreSQL error codes that mean "try again later"
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
)

// PostgresStore implements Store on PostgreSQL. Row locks taken with
// SELECT ... FOR UPDATE serialise capacity and enrollment changes; the
// lock wait is bounded by lock_timeout.
type PostgresStore struct {
	db          *database.PostgresDB
	lockTimeout time.Duration
}

func NewPostgresStore(db *database.PostgresDB, lockTimeout time.Duration) *PostgresStore {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

// WithinTx runs fn inside a READ COMMITTED transaction
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return mapPgError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// SET does not accept bind parameters
	if _, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return mapPgError("set lock timeout", err)
	}

	if err = fn(ctx, &pgView{db: tx, lock: true}); err != nil {
		return mapPgError("transaction", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return mapPgError("commit transaction", err)
	}
	return nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) view() *pgView {
	return &pgView{db: s.db.Pool}
}

func (s *PostgresStore) Catalog() CatalogRepository          { return s.view() }
func (s *PostgresStore) Participants() ParticipantRepository { return pgParticipants{s.view()} }
func (s *PostgresStore) Enrollments() EnrollmentRepository   { return pgEnrollments{s.view()} }
func (s *PostgresStore) Admissions() AdmissionRepository     { return pgAdmissions{s.view()} }
func (s *PostgresStore) Audit() AuditRepository              { return pgAudit{s.view()} }

// pgView binds the repositories to the pool or to a transaction. With lock
// set, single-row reads of activities and participants take row locks.
type pgView struct {
	db   dbtx
	lock bool
}

func (v *pgView) Catalog() CatalogRepository          { return v }
func (v *pgView) Participants() ParticipantRepository { return pgParticipants{v} }
func (v *pgView) Enrollments() EnrollmentRepository   { return pgEnrollments{v} }
func (v *pgView) Admissions() AdmissionRepository     { return pgAdmissions{v} }
func (v *pgView) Audit() AuditRepository              { return pgAudit{v} }

func (v *pgView) forUpdate() string {
	if v.lock {
		return " FOR UPDATE"
	}
	return ""
}

// mapPgError turns contention into a retryable unavailable error and
// leaves application errors untouched.
func mapPgError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return apperrors.NewUnavailableError("store is busy, retry later", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewUnavailableError("store did not answer in time", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
