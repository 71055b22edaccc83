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

// SurveyService aggregates raw response counters. Nothing derived is
// cached: every read recomputes percentages from the current counts.
type SurveyService struct {
	repo   repository.SurveyRepository
	audit  repository.AuditRepository
	logger *zap.Logger
}

func NewSurveyService(repo repository.SurveyRepository, audit repository.AuditRepository, logger *zap.Logger) *SurveyService {
	return &SurveyService{repo: repo, audit: audit, logger: logger}
}

// Percentage returns round(100*count/total) rounding halves up, or 0 when
// total is 0. Percentages of a question are rounded independently and may
// not add up to 100.
func Percentage(count, total int64) int {
	if total <= 0 {
		return 0
	}
	return int((200*count + total) / (2 * total))
}

// CreateQuestion stores a question with at least two distinct options
func (s *SurveyService) CreateQuestion(ctx context.Context, label string, options []string) (*domain.SurveyQuestion, error) {
	q := &domain.SurveyQuestion{
		ID:        uuid.NewString(),
		Label:     strings.TrimSpace(label),
		Options:   make([]string, 0, len(options)),
		CreatedAt: time.Now().UTC(),
	}
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		o = strings.TrimSpace(o)
		if seen[o] {
			return nil, apperrors.NewValidationError("options must be unique", map[string]interface{}{"option": o})
		}
		seen[o] = true
		q.Options = append(q.Options, o)
	}

	if err := validateStruct(q); err != nil {
		return nil, err
	}

	if err := s.repo.CreateQuestion(ctx, q); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewValidationError("question already exists", map[string]interface{}{"id": q.ID})
		}
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Survey question created", zap.String("question_id", q.ID), zap.Int("options", len(q.Options)))
	return q, nil
}

// Tally returns every option of a question with its count and percentage
func (s *SurveyService) Tally(ctx context.Context, questionID string) (*domain.QuestionTally, error) {
	q, counts, err := s.snapshot(ctx, questionID)
	if err != nil {
		return nil, err
	}

	total := sumCounts(q, counts)
	tally := &domain.QuestionTally{
		QuestionID:     q.ID,
		Label:          q.Label,
		Options:        make([]domain.OptionTally, 0, len(q.Options)),
		TotalResponses: total,
	}
	for _, o := range q.Options {
		tally.Options = append(tally.Options, domain.OptionTally{
			Option:     o,
			Count:      counts[o],
			Percentage: Percentage(counts[o], total),
		})
	}
	return tally, nil
}

// Detail returns the drill-down view of one option
func (s *SurveyService) Detail(ctx context.Context, questionID, option string) (*domain.OptionDetail, error) {
	q, counts, err := s.snapshot(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !q.HasOption(option) {
		return nil, apperrors.NewNotFoundError("option not found")
	}

	total := sumCounts(q, counts)
	return &domain.OptionDetail{
		QuestionID:     q.ID,
		Option:         option,
		Count:          counts[option],
		Percentage:     Percentage(counts[option], total),
		TotalResponses: total,
	}, nil
}

// RecordResponse adds one response to an option and returns its new count
func (s *SurveyService) RecordResponse(ctx context.Context, questionID, option string) (int64, error) {
	if _, err := s.requireOption(ctx, questionID, option); err != nil {
		return 0, err
	}

	count, err := s.repo.Increment(ctx, questionID, option)
	if err != nil {
		return 0, fmt.Errorf("failed to record response: %w", err)
	}
	return count, nil
}

// CorrectCount overwrites the count of an option. It is the only way a
// count can go down and always leaves an audit entry.
func (s *SurveyService) CorrectCount(ctx context.Context, questionID, option string, count int64, actor, reason string) (*domain.OptionDetail, error) {
	reason = strings.TrimSpace(reason)
	if count < 0 {
		return nil, apperrors.NewValidationError("count must not be negative", map[string]interface{}{"count": count})
	}
	if reason == "" {
		return nil, apperrors.NewValidationError("a reason is required", nil)
	}
	if _, err := s.requireOption(ctx, questionID, option); err != nil {
		return nil, err
	}

	previous, err := s.repo.SetCount(ctx, questionID, option, count)
	if err != nil {
		return nil, fmt.Errorf("failed to correct count: %w", err)
	}

	entry := newAuditEntry(domain.AuditTallyCorrection, questionID, actor, map[string]interface{}{
		"option":   option,
		"previous": previous,
		"count":    count,
		"reason":   reason,
	})
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to audit tally correction, restoring previous count",
			zap.String("question_id", questionID),
			zap.String("option", option),
			zap.Int64("previous", previous),
			zap.Error(err))
		// responses recorded in between are lost by the restore
		if _, restoreErr := s.repo.SetCount(ctx, questionID, option, previous); restoreErr != nil {
			s.logger.Error("Failed to restore count after audit failure",
				zap.String("question_id", questionID),
				zap.String("option", option),
				zap.Error(restoreErr))
			return nil, fmt.Errorf("count corrected but not audited: %w", errors.Join(err, restoreErr))
		}
		return nil, fmt.Errorf("failed to audit correction: %w", err)
	}

	s.logger.Warn("Tally corrected",
		zap.String("question_id", questionID),
		zap.String("option", option),
		zap.Int64("previous", previous),
		zap.Int64("count", count),
		zap.String("actor", entry.Actor))

	return s.Detail(ctx, questionID, option)
}

func (s *SurveyService) requireQuestion(ctx context.Context, questionID string) (*domain.SurveyQuestion, error) {
	q, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if q == nil {
		return nil, apperrors.NewNotFoundError("question not found")
	}
	return q, nil
}

func (s *SurveyService) requireOption(ctx context.Context, questionID, option string) (*domain.SurveyQuestion, error) {
	q, err := s.requireQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !q.HasOption(option) {
		return nil, apperrors.NewNotFoundError("option not found")
	}
	return q, nil
}

func (s *SurveyService) snapshot(ctx context.Context, questionID string) (*domain.SurveyQuestion, map[string]int64, error) {
	q, err := s.requireQuestion(ctx, questionID)
	if err != nil {
		return nil, nil, err
	}
	counts, err := s.repo.Counts(ctx, questionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read counts: %w", err)
	}
	return q, counts, nil
}

// sumCounts only adds the options of the question so a stray counter
// can never skew the denominator
func sumCounts(q *domain.SurveyQuestion, counts map[string]int64) int64 {
	var total int64
	for _, o := range q.Options {
		total += counts[o]
	}
	return total
}
