package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"smartrecipe/internal/logging"
	"smartrecipe/internal/recipe"
)

// Postgres implements Store on a PostgreSQL table. Rows older than ttl are
// treated as absent and removed on the next save.
type Postgres struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

type sessionRow struct {
	Recipes     []byte    `db:"recipes"`
	Ingredients []byte    `db:"ingredients"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// NewPostgres connects to dataSourceName and creates the session table.
func NewPostgres(ctx context.Context, dataSourceName string, ttl time.Duration) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Create recipe_sessions table if not exists
	schema := `
	CREATE TABLE IF NOT EXISTS recipe_sessions (
		session_id TEXT PRIMARY KEY,
		recipes JSONB NOT NULL,
		ingredients JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create recipe_sessions table: %w", err)
	}

	return &Postgres{db: db, ttl: ttl, now: time.Now}, nil
}

// Load retrieves a session snapshot by id.
func (s *Postgres) Load(ctx context.Context, id string) (*recipe.Snapshot, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		"SELECT recipes, ingredients, updated_at FROM recipe_sessions WHERE session_id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			observe(PostgresStore, "load", nil)
			return nil, nil // Session not found
		}
		observe(PostgresStore, "load", err)
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	observe(PostgresStore, "load", nil)

	if s.ttl > 0 && s.now().Sub(row.UpdatedAt) > s.ttl {
		return nil, nil
	}

	var snap recipe.Snapshot
	if err := json.Unmarshal(row.Recipes, &snap.Recipes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipes: %w", err)
	}
	if err := json.Unmarshal(row.Ingredients, &snap.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
	}
	return &snap, nil
}

// Save upserts the session snapshot.
func (s *Postgres) Save(ctx context.Context, id string, snap *recipe.Snapshot) error {
	recipesJSON, err := json.Marshal(snap.Recipes)
	if err != nil {
		return fmt.Errorf("failed to marshal recipes: %w", err)
	}
	ingredientsJSON, err := json.Marshal(snap.Ingredients)
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients: %w", err)
	}

	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO recipe_sessions (session_id, recipes, ingredients, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (session_id) DO UPDATE SET recipes = $2, ingredients = $3, updated_at = $4",
		id,
		string(recipesJSON),
		string(ingredientsJSON),
		now,
	)
	observe(PostgresStore, "save", err)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if s.ttl > 0 {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM recipe_sessions WHERE updated_at < $1", now.Add(-s.ttl)); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("failed to expire old sessions")
		}
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Postgres) Close() error {
	return s.db.Close()
}
