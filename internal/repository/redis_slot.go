package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type RedisSlot struct {
	redis *redis.Client
	key   string
}

func NewRedisSlot(redisClient *redis.Client, key string) *RedisSlot {
	return &RedisSlot{redis: redisClient, key: key}
}

func (s *RedisSlot) Get(ctx context.Context) ([]byte, bool, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot %s: %w", s.key, err)
	}
	return data, true, nil
}

func (s *RedisSlot) Set(ctx context.Context, value []byte) error {
	// No expiry: the slot lives until it is overwritten.
	if err := s.redis.Set(ctx, s.key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write slot %s: %w", s.key, err)
	}
	return nil
}
