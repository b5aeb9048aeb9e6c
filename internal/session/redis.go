package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"smartrecipe/internal/logging"
	"smartrecipe/internal/recipe"
)

const redisKeyPrefix = "smartrecipe:session:"

// Redis implements Store on a Redis server. Each session is one JSON value
// whose TTL is refreshed on every save.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis client from a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info().Str("addr", opts.Addr).Msg("connected to Redis")
	return client, nil
}

// NewRedis creates a new Redis store.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Load retrieves a session snapshot from Redis.
func (s *Redis) Load(ctx context.Context, id string) (*recipe.Snapshot, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		observe(RedisStore, "load", nil)
		return nil, nil
	}
	observe(RedisStore, "load", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var snap recipe.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &snap, nil
}

// Save stores a session snapshot in Redis.
func (s *Redis) Save(ctx context.Context, id string, snap *recipe.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = s.client.Set(ctx, redisKeyPrefix+id, data, s.ttl).Err()
	observe(RedisStore, "save", err)
	if err != nil {
		return fmt.Errorf("failed to save session to Redis: %w", err)
	}
	return nil
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) Close() error {
	return s.client.Close()
}
