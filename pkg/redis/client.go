package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Nil is returned by reads of missing keys
var Nil = redis.Nil

type Client struct {
	rdb        *redis.Client
	KeyBuilder *KeyBuilder
	log        *zap.Logger
}

// Cache key patterns
const (
	KeySurveyQuestion = "survey:question:%s"
	KeySurveyCounts   = "survey:question:%s:counts"
)

// NewClient creates a new Redis client and checks the connection
func NewClient(redisURL string, environment string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{rdb: rdb, KeyBuilder: NewKeyBuilder(environment), log: log}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Get retrieves a value from Redis
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := c.rdb.Get(ctx, key).Result()
	c.logOp("redis_get", key, time.Since(start), err, redis.Nil)
	return val, err
}

// SetNX sets a value only if it doesn't exist
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	c.logOp("redis_setnx", key, time.Since(start), err, nil, zap.Bool("result", ok))
	return ok, err
}

// Delete removes keys from Redis
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := c.rdb.Del(ctx, keys...).Err()
	c.log.Debug("redis_del",
		zap.Int("keys", len(keys)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))
	return err
}

// HIncrBy increments a hash field
func (c *Client) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	start := time.Now()
	v, err := c.rdb.HIncrBy(ctx, key, field, incr).Result()
	c.logOp("redis_hincrby", key, time.Since(start), err, nil, zap.Int64("value", v))
	return v, err
}

// HSet sets hash fields
func (c *Client) HSet(ctx context.Context, key string, values ...interface{}) error {
	start := time.Now()
	err := c.rdb.HSet(ctx, key, values...).Err()
	c.logOp("redis_hset", key, time.Since(start), err, nil, zap.Int("fields", len(values)/2))
	return err
}

// HGetAll gets all fields from a hash
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	m, err := c.rdb.HGetAll(ctx, key).Result()
	c.logOp("redis_hgetall", key, time.Since(start), err, nil, zap.Int("fields", len(m)))
	return m, err
}

// Eval runs a Lua script atomically on the server
func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	start := time.Now()
	v, err := c.rdb.Eval(ctx, script, keys, args...).Result()
	prefix := ""
	if len(keys) > 0 {
		prefix = keys[0]
	}
	c.logOp("redis_eval", prefix, time.Since(start), err, redis.Nil)
	return v, err
}

// Health checks the Redis connection
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("redis_ping",
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_ping", zap.Duration("duration", dur))
	}
	return err
}

// logOp logs failures at info and successes at debug. An error equal to
// quiet is an expected miss and logged at debug.
func (c *Client) logOp(op, key string, dur time.Duration, err error, quiet error, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("key_prefix", prefixForLog(key)),
		zap.Duration("duration", dur),
	}, extra...)
	if err != nil && (quiet == nil || err != quiet) {
		c.log.Info(op, append(fields, zap.Error(err))...)
		return
	}
	c.log.Debug(op, fields...)
}

// prefixForLog returns a safe prefix of a key to avoid logging PII
func prefixForLog(key string) string {
	if len(key) <= 24 {
		return key
	}
	return key[:24] + "…"
}
