package repository

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// RedisReplayStore records consumed packet digests so one attested packet
// clears at most one batch. The TTL only needs to outlive the longest packet
// deadline window; an expired packet fails verification before replay is
// ever consulted.
type RedisReplayStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisReplayStore(client *redis.Client, ttl time.Duration) *RedisReplayStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisReplayStore{
		client: client,
		ttl:    ttl,
		prefix: "packet:",
	}
}

// Reserve claims the digest. False means another batch already holds it.
func (s *RedisReplayStore) Reserve(ctx context.Context, digest []byte) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+common.Bytes2Hex(digest), "1", s.ttl).Result()
}

// Release frees a reservation after an aborted batch so the packet stays
// usable for a retry.
func (s *RedisReplayStore) Release(ctx context.Context, digest []byte) error {
	return s.client.Del(ctx, s.prefix+common.Bytes2Hex(digest)).Err()
}
