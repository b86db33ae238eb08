package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DustGate/dustgate/internal/middleware"
	"github.com/DustGate/dustgate/internal/pkg/logger"
)

// RedisIdempotencyStore shares cached responses across instances. Implements
// middleware.IdempotencyStore. The middleware contract is synchronous, so
// Redis round trips run under a short internal timeout; a Redis outage
// degrades to processing the request instead of blocking it.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{
		client: client,
		ttl:    ttl,
		prefix: "idem:",
	}
}

// lockSentinel marks a key as claimed but not yet answered.
const lockSentinel = "__processing__"

func (s *RedisIdempotencyStore) GetOrLock(key string) (*middleware.IdempotencyRecord, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Claim the key if it is free. The lock expires on its own so a crashed
	// instance cannot wedge a key forever.
	locked, err := s.client.SetNX(ctx, s.prefix+key, lockSentinel, s.ttl).Result()
	if err != nil {
		logger.Warn("idempotency store unavailable, proceeding without", "error", err.Error())
		return nil, false
	}
	if locked {
		return nil, false
	}

	raw, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		// Key vanished between SetNX and Get (expiry or explicit unlock);
		// treat it as a miss and let the request run.
		return nil, false
	}
	if raw == lockSentinel {
		return &middleware.IdempotencyRecord{Processing: true}, true
	}

	var record middleware.IdempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		logger.Warn("corrupt idempotency record, dropping", "key", key, "error", err.Error())
		s.Unlock(key)
		return nil, false
	}
	return &record, true
}

func (s *RedisIdempotencyStore) Save(key string, status int, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	record := middleware.IdempotencyRecord{
		Status:    status,
		Body:      body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, s.ttl).Err(); err != nil {
		logger.Warn("failed to save idempotency record", "key", key, "error", err.Error())
	}
}

func (s *RedisIdempotencyStore) Unlock(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		logger.Warn("failed to unlock idempotency key", "key", key, "error", err.Error())
	}
}
