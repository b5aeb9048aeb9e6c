// Package session keeps per-user recipe state between requests.
//
// A Store maps a session id to the last recipe.Snapshot shown to that user.
// Bind narrows a Store to one session id so the aggregation workflow only
// ever sees its own slot.
package session

import (
	"context"
	"fmt"

	"smartrecipe/internal/config"
	"smartrecipe/internal/metrics"
	"smartrecipe/internal/recipe"
)

// Store defines the interface for session state operations. Load returns
// (nil, nil) when the session has no state.
type Store interface {
	Load(ctx context.Context, id string) (*recipe.Snapshot, error)
	Save(ctx context.Context, id string, snap *recipe.Snapshot) error
	Ping(ctx context.Context) error
	Close() error
}

// Type names a Store backend.
type Type string

const (
	MemoryStore   Type = "memory"
	RedisStore    Type = "redis"
	PostgresStore Type = "postgres"
)

// Bind returns the SessionCache for a single session id.
func Bind(store Store, id string) recipe.SessionCache {
	return &cache{store: store, id: id}
}

type cache struct {
	store Store
	id    string
}

func (c *cache) Get(ctx context.Context) (recipe.Snapshot, bool, error) {
	snap, err := c.store.Load(ctx, c.id)
	if err != nil {
		return recipe.Snapshot{}, false, fmt.Errorf("failed to load session %s: %w", c.id, err)
	}
	if snap == nil {
		return recipe.Snapshot{}, false, nil
	}
	return *snap, true, nil
}

func (c *cache) Put(ctx context.Context, recipes []recipe.Record, ingredients []string) error {
	if recipes == nil {
		recipes = []recipe.Record{}
	}
	if ingredients == nil {
		ingredients = []string{}
	}
	if err := c.store.Save(ctx, c.id, &recipe.Snapshot{Recipes: recipes, Ingredients: ingredients}); err != nil {
		return fmt.Errorf("failed to save session %s: %w", c.id, err)
	}
	return nil
}

func observe(store Type, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.SessionOps.WithLabelValues(string(store), op, result).Inc()
}

// New opens the Store named by cfg.Store.
func New(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	switch Type(cfg.Store) {
	case MemoryStore, "":
		return NewMemory(cfg.TTL), nil
	case RedisStore:
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedis(client, cfg.TTL), nil
	case PostgresStore:
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.TTL)
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Store)
	}
}
