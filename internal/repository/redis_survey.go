package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"be-guichet/internal/domain"
	"be-guichet/pkg/redis"
)

// setCountScript overwrites one counter and returns its previous value
const setCountScript = `
local old = redis.call('HGET', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if old then return tonumber(old) end
return 0
`

// RedisSurveyRepository stores questions as JSON and counters in a hash,
// so concurrent responses are applied with HINCRBY.
type RedisSurveyRepository struct {
	redis *redis.Client
}

func NewRedisSurveyRepository(client *redis.Client) *RedisSurveyRepository {
	return &RedisSurveyRepository{redis: client}
}

// CreateQuestion stores the question and zeroes its counters
func (r *RedisSurveyRepository) CreateQuestion(ctx context.Context, question *domain.SurveyQuestion) error {
	data, err := json.Marshal(question)
	if err != nil {
		return fmt.Errorf("failed to encode question: %w", err)
	}

	created, err := r.redis.SetNX(ctx, r.redis.KeyBuilder.KeySurveyQuestion(question.ID), string(data), 0)
	if err != nil {
		return fmt.Errorf("failed to store question: %w", err)
	}
	if !created {
		return ErrDuplicate
	}

	fields := make([]interface{}, 0, len(question.Options)*2)
	for _, o := range question.Options {
		fields = append(fields, o, 0)
	}
	if err := r.redis.HSet(ctx, r.redis.KeyBuilder.KeySurveyCounts(question.ID), fields...); err != nil {
		// a question without counters would reject every response
		_ = r.redis.Delete(ctx, r.redis.KeyBuilder.KeySurveyQuestion(question.ID))
		return fmt.Errorf("failed to initialise counters: %w", err)
	}
	return nil
}

// GetQuestion retrieves a question
func (r *RedisSurveyRepository) GetQuestion(ctx context.Context, id string) (*domain.SurveyQuestion, error) {
	data, err := r.redis.Get(ctx, r.redis.KeyBuilder.KeySurveyQuestion(id))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	var q domain.SurveyQuestion
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return nil, fmt.Errorf("failed to decode question %s: %w", id, err)
	}
	return &q, nil
}

// Increment adds one response to an option
func (r *RedisSurveyRepository) Increment(ctx context.Context, questionID, option string) (int64, error) {
	v, err := r.redis.HIncrBy(ctx, r.redis.KeyBuilder.KeySurveyCounts(questionID), option, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	return v, nil
}

// SetCount overwrites a counter atomically and returns the previous value
func (r *RedisSurveyRepository) SetCount(ctx context.Context, questionID, option string, count int64) (int64, error) {
	res, err := r.redis.Eval(ctx, setCountScript,
		[]string{r.redis.KeyBuilder.KeySurveyCounts(questionID)}, option, count)
	if err != nil {
		return 0, fmt.Errorf("failed to set counter: %w", err)
	}
	previous, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result %T", res)
	}
	return previous, nil
}

// Counts retrieves every counter of a question
func (r *RedisSurveyRepository) Counts(ctx context.Context, questionID string) (map[string]int64, error) {
	raw, err := r.redis.HGetAll(ctx, r.redis.KeyBuilder.KeySurveyCounts(questionID))
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}

	counts := make(map[string]int64, len(raw))
	for option, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt counter %s/%s: %w", questionID, option, err)
		}
		counts[option] = n
	}
	return counts, nil
}

func (r *RedisSurveyRepository) Health(ctx context.Context) error {
	return r.redis.Health(ctx)
}
