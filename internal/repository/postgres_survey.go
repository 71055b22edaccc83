package repository

import (
	"context"
	"errors"
	"fmt"

	"be-guichet/internal/domain"
	"be-guichet/pkg/database"

	"github.com/jackc/pgx/v5"
)

// PostgresSurveyRepository keeps counters in survey_options. Increments
// are single UPDATE statements so concurrent responses never lose a count.
type PostgresSurveyRepository struct {
	db *database.PostgresDB
}

func NewPostgresSurveyRepository(db *database.PostgresDB) *PostgresSurveyRepository {
	return &PostgresSurveyRepository{db: db}
}

// CreateQuestion stores the question and its zeroed options
func (r *PostgresSurveyRepository) CreateQuestion(ctx context.Context, question *domain.SurveyQuestion) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO survey_questions (id, label, created_at)
		VALUES ($1, $2, $3)`,
		question.ID, question.Label, question.CreatedAt,
	)
	for i, o := range question.Options {
		batch.Queue(`
			INSERT INTO survey_options (question_id, option, position, count)
			VALUES ($1, $2, $3, 0)`,
			question.ID, o, i,
		)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to create question: %w", err)
		}
	}
	return nil
}

// GetQuestion retrieves a question with its ordered options
func (r *PostgresSurveyRepository) GetQuestion(ctx context.Context, id string) (*domain.SurveyQuestion, error) {
	var q domain.SurveyQuestion
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, label, created_at
		FROM survey_questions
		WHERE id = $1`, id,
	).Scan(&q.ID, &q.Label, &q.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT option FROM survey_options
		WHERE question_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get options: %w", err)
	}
	q.Options, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan options: %w", err)
	}
	return &q, nil
}

// Increment adds one response to an option
func (r *PostgresSurveyRepository) Increment(ctx context.Context, questionID, option string) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `
		UPDATE survey_options SET count = count + 1
		WHERE question_id = $1 AND option = $2
		RETURNING count`, questionID, option,
	).Scan(&count)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("option %s not found on question %s", option, questionID)
	}
	if err != nil {
		return 0, mapPgError("increment counter", err)
	}
	return count, nil
}

// SetCount overwrites a counter and returns the previous value
func (r *PostgresSurveyRepository) SetCount(ctx context.Context, questionID, option string, count int64) (previous int64, err error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, mapPgError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT count FROM survey_options
		WHERE question_id = $1 AND option = $2
		FOR UPDATE`, questionID, option,
	).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("option %s not found on question %s", option, questionID)
	}
	if err != nil {
		return 0, mapPgError("lock counter", err)
	}

	if _, err = tx.Exec(ctx, `
		UPDATE survey_options SET count = $3
		WHERE question_id = $1 AND option = $2`, questionID, option, count); err != nil {
		return 0, mapPgError("set counter", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, mapPgError("commit transaction", err)
	}
	return previous, nil
}

// Counts retrieves every counter of a question
func (r *PostgresSurveyRepository) Counts(ctx context.Context, questionID string) (map[string]int64, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT option, count FROM survey_options
		WHERE question_id = $1`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			option string
			n      int64
		)
		if err := rows.Scan(&option, &n); err != nil {
			return nil, fmt.Errorf("failed to scan counter: %w", err)
		}
		counts[option] = n
	}
	return counts, rows.Err()
}

func (r *PostgresSurveyRepository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}
