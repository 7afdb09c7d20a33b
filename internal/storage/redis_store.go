package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisScanBatch = 100

// RedisStore prefixes every key with "<namespace>:" so several namespaces can
// share one database.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisStore(ctx context.Context, addr, password string, db int, namespace string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: rdb, namespace: namespace}, nil
}

func (s *RedisStore) key(key string) string {
	return fmt.Sprintf("%s:%s", s.namespace, key)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.namespace+":*", redisScanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan namespace %s: %w", s.namespace, err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", s.namespace, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
