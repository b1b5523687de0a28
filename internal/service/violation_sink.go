package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/proktor-id/proktor-backend/internal/config"
	"github.com/proktor-id/proktor-backend/internal/model"
	"github.com/proktor-id/proktor-backend/internal/worker"
)

// RedisViolationSink pushes violation telemetry onto the persistence queue.
// The session never waits on PostgreSQL; the violation worker drains the
// queue in batches.
type RedisViolationSink struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisViolationSink creates a sink over the given Redis client.
func NewRedisViolationSink(rdb *redis.Client, log zerolog.Logger) *RedisViolationSink {
	return &RedisViolationSink{
		rdb: rdb,
		log: log.With().Str("component", "violation_sink").Logger(),
	}
}

// Record enqueues one violation. Implements proctor.ViolationSink.
func (s *RedisViolationSink) Record(ctx context.Context, ticketCode string, v model.Violation) error {
	payload := worker.ViolationPayload{
		TicketCode: ticketCode,
		Type:       string(v.Type),
		Message:    v.Message,
		RecordedAt: v.RecordedAt.UnixMilli(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data).Err()
}
