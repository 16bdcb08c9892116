// Package errtrack keeps a bounded record of notification failures in Redis
// so operators can inspect them without grepping logs.
package errtrack

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKey   = "marketplace:notification_failures"
	countsSuffix = ":counts"
)

// Reporter receives delivery failures. Implementations must not block the
// dispatcher for long.
type Reporter interface {
	Report(ctx context.Context, failure models.NotificationFailure) error
}

// RedisReporter pushes failures onto a capped list and keeps per-subscriber
// totals in a hash.
type RedisReporter struct {
	client redis.Cmdable
	key    string
	size   int64
	logger logger.Logger
}

func NewRedisReporter(client redis.Cmdable, size int64, log logger.Logger) *RedisReporter {
	if size <= 0 {
		size = 500
	}
	return &RedisReporter{client: client, key: defaultKey, size: size, logger: log}
}

func (r *RedisReporter) Report(ctx context.Context, failure models.NotificationFailure) error {
	if failure.ID == "" {
		failure.ID = uuid.NewString()
	}
	if failure.OccurredAt.IsZero() {
		failure.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key, payload)
		pipe.LTrim(ctx, r.key, 0, r.size-1)
		pipe.HIncrBy(ctx, r.key+countsSuffix, failure.Subscriber, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record notification failure: %w", err)
	}
	return nil
}

// Recent returns up to limit failures, newest first.
func (r *RedisReporter) Recent(ctx context.Context, limit int64) ([]models.NotificationFailure, error) {
	if limit <= 0 || limit > r.size {
		limit = r.size
	}

	raw, err := r.client.LRange(ctx, r.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read notification failures: %w", err)
	}

	out := make([]models.NotificationFailure, 0, len(raw))
	for _, item := range raw {
		var f models.NotificationFailure
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			r.logger.Warn("skipping malformed failure record", map[string]interface{}{
				"error": err,
			})
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// Counts returns the total failures per subscriber since the hash was created.
func (r *RedisReporter) Counts(ctx context.Context) (map[string]int64, error) {
	raw, err := r.client.HGetAll(ctx, r.key+countsSuffix).Result()
	if err != nil {
		return nil, fmt.Errorf("read failure counts: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil {
			out[k] = n
		}
	}
	return out, nil
}

// LogReporter only logs. It stands in when Redis is not configured or
// cannot be reached at startup.
type LogReporter struct {
	logger logger.Logger
}

func NewLogReporter(log logger.Logger) *LogReporter {
	return &LogReporter{logger: log}
}

func (l *LogReporter) Report(_ context.Context, failure models.NotificationFailure) error {
	l.logger.Error("notification failure", map[string]interface{}{
		"eventId":    failure.EventID,
		"eventKind":  failure.EventKind,
		"subscriber": failure.Subscriber,
		"listingId":  failure.ListingID,
		"error":      failure.Error,
	})
	return nil
}
