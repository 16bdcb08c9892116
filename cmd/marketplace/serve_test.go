package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"affiliate-marketplace/internal/common/auth"
	"affiliate-marketplace/internal/common/config"
	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/errtrack"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	log := logger.NewTestLogger(t)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, 5, time.Millisecond, log, "postgres")
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), func() error {
			calls++
			return errors.New("connection refused")
		}, 3, time.Millisecond, log, "postgres")
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "after 3 attempts")
	})

	t.Run("stops when cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := retryWithBackoff(ctx, func() error {
			return errors.New("connection refused")
		}, 5, time.Hour, log, "redis")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewResolver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.Mode = "header"
	assert.IsType(t, auth.HeaderResolver{}, newResolver(cfg))

	cfg.Auth.Mode = "keycloak"
	cfg.Auth.Keycloak.URL = "http://keycloak:8080"
	cfg.Auth.Keycloak.Realm = "marketplace"
	cfg.Auth.Keycloak.Timeout = 1000
	assert.IsType(t, &auth.KeycloakResolver{}, newResolver(cfg))
}

func TestNotificationSubscribers_NoAWS(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notifications.OperatorEmail = "ops@example.com"

	subs, err := notificationSubscribers(context.Background(), cfg, logger.NewNoOpLogger())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "email", subs[0].Name())
}

func TestFailureTracking(t *testing.T) {
	log := logger.NewTestLogger(t)
	ctx := context.Background()

	t.Run("no redis address logs only", func(t *testing.T) {
		reporter, failureLog, rdb := failureTracking(ctx, config.RedisConfig{}, 100, 1, log)
		assert.IsType(t, &errtrack.LogReporter{}, reporter)
		assert.Nil(t, failureLog)
		assert.Nil(t, rdb)
	})

	t.Run("reachable redis keeps the failure log", func(t *testing.T) {
		mr := miniredis.RunT(t)
		reporter, failureLog, rdb := failureTracking(ctx, config.RedisConfig{Address: mr.Addr()}, 100, 1, log)
		require.NotNil(t, rdb)
		t.Cleanup(func() { _ = rdb.Close() })
		assert.IsType(t, &errtrack.RedisReporter{}, reporter)
		assert.NotNil(t, failureLog)
	})

	t.Run("unreachable redis falls back to logging", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()
		reporter, failureLog, rdb := failureTracking(ctx, config.RedisConfig{Address: addr}, 100, 1, log)
		assert.IsType(t, &errtrack.LogReporter{}, reporter)
		assert.Nil(t, failureLog)
		assert.Nil(t, rdb)
	})
}
