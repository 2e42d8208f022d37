package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the cache connection settings.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type RedisCompletionCache struct {
	client *redis.Client
}

// NewRedisCompletionCache connects to Redis and fails if it cannot be pinged.
func NewRedisCompletionCache(cfg RedisConfig) (*RedisCompletionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCompletionCache{client: client}, nil
}

func (c *RedisCompletionCache) Get(ctx context.Context, key string) ([]string, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var suggestions []string
	if err := json.Unmarshal(data, &suggestions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return suggestions, nil
}

func (c *RedisCompletionCache) Set(ctx context.Context, key string, suggestions []string, ttl time.Duration) error {
	data, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisCompletionCache) Close() error {
	return c.client.Close()
}
