package repository

import (
	"context"
	"fmt"
	"sync"

	"be-guichet/internal/domain"
)

// MemorySurveyRepository keeps survey counters in process
type MemorySurveyRepository struct {
	mu        sync.RWMutex
	questions map[string]domain.SurveyQuestion
	counts    map[string]map[string]int64
}

// NewMemorySurveyRepository creates an empty in-memory survey repository
func NewMemorySurveyRepository() *MemorySurveyRepository {
	return &MemorySurveyRepository{
		questions: make(map[string]domain.SurveyQuestion),
		counts:    make(map[string]map[string]int64),
	}
}

func (r *MemorySurveyRepository) CreateQuestion(_ context.Context, question *domain.SurveyQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.questions[question.ID]; ok {
		return ErrDuplicate
	}
	q := *question
	q.Options = append([]string(nil), question.Options...)
	r.questions[q.ID] = q

	counts := make(map[string]int64, len(q.Options))
	for _, o := range q.Options {
		counts[o] = 0
	}
	r.counts[q.ID] = counts
	return nil
}

func (r *MemorySurveyRepository) GetQuestion(_ context.Context, id string) (*domain.SurveyQuestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.questions[id]
	if !ok {
		return nil, nil
	}
	q.Options = append([]string(nil), q.Options...)
	return &q, nil
}

func (r *MemorySurveyRepository) Increment(_ context.Context, questionID, option string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts, ok := r.counts[questionID]
	if !ok {
		return 0, fmt.Errorf("question %s not found", questionID)
	}
	counts[option]++
	return counts[option], nil
}

func (r *MemorySurveyRepository) SetCount(_ context.Context, questionID, option string, count int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts, ok := r.counts[questionID]
	if !ok {
		return 0, fmt.Errorf("question %s not found", questionID)
	}
	previous := counts[option]
	counts[option] = count
	return previous, nil
}

func (r *MemorySurveyRepository) Counts(_ context.Context, questionID string) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64, len(r.counts[questionID]))
	for k, v := range r.counts[questionID] {
		out[k] = v
	}
	return out, nil
}

func (r *MemorySurveyRepository) Health(ctx context.Context) error {
	return ctx.Err()
}
