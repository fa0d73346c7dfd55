package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss: ключа нет в L2.
var ErrMiss = errors.New("cache miss")

// ViewStore: L2 хранилище сериализованных представлений.
type ViewStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// TryLock: распределенная блокировка (SetNX), чтобы прогревом занимался один инстанс
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisViewStore: ViewStore поверх go-redis.
type RedisViewStore struct {
	rdb redis.Cmdable
}

func NewRedisViewStore(rdb redis.Cmdable) *RedisViewStore {
	return &RedisViewStore{rdb: rdb}
}

func (s *RedisViewStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisViewStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisViewStore) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "processing", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}
