package container

import (
	"context"
	"testing"
	"time"

	"be-guichet/internal/config"
	"be-guichet/internal/repository"
	"be-guichet/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:             "8080",
		Environment:      "test",
		LogLevel:         "info",
		StoreLockTimeout: time.Second,
		DBLockTimeout:    time.Second,
	}
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name          string
		redisURL      string
		expectRedis   bool
		expectSurveys interface{}
	}{
		{
			name:          "Memory only",
			redisURL:      "",
			expectRedis:   false,
			expectSurveys: &repository.MemorySurveyRepository{},
		},
		{
			name:          "Redis counters",
			redisURL:      "redis://" + mr.Addr(),
			expectRedis:   true,
			expectSurveys: &repository.RedisSurveyRepository{},
		},
		{
			name:          "Invalid Redis URL falls back",
			redisURL:      "invalid://redis-url",
			expectRedis:   false,
			expectSurveys: &repository.MemorySurveyRepository{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.RedisURL = tt.redisURL
			testLogger := logger.NewNop()

			c, err := New(context.Background(), cfg, testLogger)
			require.NoError(t, err)
			require.NotNil(t, c)
			t.Cleanup(func() { _ = c.Close() })

			assert.Equal(t, cfg, c.GetConfig())
			assert.Equal(t, testLogger, c.GetLogger())
			assert.False(t, c.HasDatabase())
			assert.Equal(t, tt.expectRedis, c.HasRedis())
			assert.IsType(t, &repository.MemoryStore{}, c.Store)
			assert.IsType(t, tt.expectSurveys, c.Surveys)

			require.NotNil(t, c.Services)
			assert.NotNil(t, c.Services.Catalog)
			assert.NotNil(t, c.Services.Participants)
			assert.NotNil(t, c.Services.Enrollments)
			assert.NotNil(t, c.Services.Admissions)
			assert.NotNil(t, c.Services.Surveys)
			assert.NotNil(t, c.Services.Audit)

			for component, err := range c.Health(context.Background()) {
				assert.NoError(t, err, component)
			}
		})
	}
}

func TestNew_InvalidDatabaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseURL = "postgres://guichet@localhost:notaport/guichet"

	c, err := New(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestContainer_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	c, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	require.True(t, c.HasRedis())

	assert.NoError(t, c.Close())
	assert.Nil(t, c.GetRedisClient())
	assert.NoError(t, c.Close(), "closing twice is harmless")
}
