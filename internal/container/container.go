package container

import (
	"context"
	"fmt"

	"be-guichet/internal/config"
	"be-guichet/internal/repository"
	"be-guichet/internal/service"
	"be-guichet/pkg/database"
	"be-guichet/pkg/logger"
	"be-guichet/pkg/redis"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *database.PostgresDB
	RedisClient *redis.Client
	Store       repository.Store
	Surveys     repository.SurveyRepository
	Services    *service.Services
}

// New creates a new dependency injection container.
//
// The store is PostgreSQL when DATABASE_URL is set and in-memory otherwise.
// Survey counters go to Redis when REDIS_URL is set, then to PostgreSQL, then
// to memory. An unreachable Redis is not fatal: counters fall back.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: log,
	}

	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
			log.Info("Database schema migrated")
		}
		c.DB = db
		c.Store = repository.NewPostgresStore(db, cfg.DBLockTimeout)
		log.Info("Using PostgreSQL store", zap.Duration("lock_timeout", cfg.DBLockTimeout))
	} else {
		c.Store = repository.NewMemoryStore(cfg.StoreLockTimeout)
		log.Info("DATABASE_URL not configured, using in-memory store",
			zap.Duration("lock_timeout", cfg.StoreLockTimeout))
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Named("redis").Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, survey counters fall back")
		} else {
			c.RedisClient = client
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured")
	}

	switch {
	case c.RedisClient != nil:
		c.Surveys = repository.NewRedisSurveyRepository(c.RedisClient)
	case c.DB != nil:
		c.Surveys = repository.NewPostgresSurveyRepository(c.DB)
	default:
		c.Surveys = repository.NewMemorySurveyRepository()
	}

	c.Services = service.NewServices(c.Store, c.Surveys, log.Logger)
	return c, nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// HasDatabase returns true if the PostgreSQL store is in use
func (c *Container) HasDatabase() bool {
	return c.DB != nil
}

// Health checks the store and the survey counter backend
func (c *Container) Health(ctx context.Context) map[string]error {
	return map[string]error{
		"store":   c.Store.Health(ctx),
		"surveys": c.Surveys.Health(ctx),
	}
}

// Close releases Redis and then the database pool
func (c *Container) Close() error {
	var firstErr error
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close redis: %w", err)
		}
		c.RedisClient = nil
	}
	if c.Store != nil {
		c.Store.Close()
	}
	return firstErr
}
