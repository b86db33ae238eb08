package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DustGate/dustgate/internal/config"
)

// NewRedisClient dials Redis and verifies it answers before the caller
// commits to Redis-backed stores.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
