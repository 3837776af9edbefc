package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps each preference as a plain redis string under
// "<prefix><visitor>:<key>". Keys never expire.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client, prefix: "prefs:"}
}

func NewRedisBackendWithPrefix(client redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) For(visitorID string) Storage {
	return redisStorage{client: b.client, prefix: b.prefix + visitorID + ":"}
}

type redisStorage struct {
	client redis.UniversalClient
	prefix string
}

func (s redisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s redisStorage) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// maxWatchRetries bounds optimistic retries when another writer touched the
// key between WATCH and EXEC.
const maxWatchRetries = 10

// Update reads and writes the key inside WATCH/MULTI so that concurrent
// writers from other processes are never overwritten.
func (s redisStorage) Update(ctx context.Context, key string, fn func(old string, ok bool) (string, error)) error {
	full := s.prefix + key
	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, full).Result()
		ok := true
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}
			ok = false
		}
		v, err := fn(old, ok)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, v, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, full)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis update %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("redis update %s: too much contention", key)
}
