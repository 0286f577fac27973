package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skychat/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore wraps go-redis to centralize configuration. It is the remote
// key-value collaborator; values persist without TTL.
type RedisStore struct {
	inner *redis.Client
}

// NewRedisStore creates the redis-backed store from app config.
func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisStore{inner: client}, nil
}

// Get fetches the key as string, mapping a miss to ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	if s == nil || s.inner == nil {
		return "", errors.New("redis store not initialized")
	}
	val, err := s.inner.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

// Set stores a key without expiry.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if s == nil || s.inner == nil {
		return errors.New("redis store not initialized")
	}
	return s.inner.Set(ctx, key, value, 0).Err()
}

// SetTTL stores a key with an expiry, used for cached identity lookups.
func (s *RedisStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if s == nil || s.inner == nil {
		return errors.New("redis store not initialized")
	}
	return s.inner.Set(ctx, key, value, ttl).Err()
}

// Delete removes the key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.inner == nil {
		return errors.New("redis store not initialized")
	}
	return s.inner.Del(ctx, key).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	if s == nil || s.inner == nil {
		return nil
	}
	return s.inner.Close()
}
