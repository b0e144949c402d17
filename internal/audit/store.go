// Package audit provides PostgreSQL-backed storage for the moderation
// action log: every ban, unban, restriction, and purge the engine or a
// command issues, with who it hit and why, for operator review.
//
// The log is append-only and write-only from the engine's point of view.
// Decisions never read it back, so it can lag or fail without affecting
// moderation behavior.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Action values recorded in the log, matching the CHECK constraint on the
// moderation_actions table.
const (
	ActionBan        = "ban"
	ActionUnban      = "unban"
	ActionKick       = "kick"
	ActionMute       = "mute"
	ActionUnmute     = "unmute"
	ActionWipe       = "wipe"
	ActionPurge      = "purge"
	ActionGlobalBan  = "global_ban"
	ActionChannelBan = "channel_ban"
)

// validActions mirrors the table's CHECK constraint.
var validActions = map[string]bool{
	ActionBan:        true,
	ActionUnban:      true,
	ActionKick:       true,
	ActionMute:       true,
	ActionUnmute:     true,
	ActionWipe:       true,
	ActionPurge:      true,
	ActionGlobalBan:  true,
	ActionChannelBan: true,
}

// Store manages the moderation action log in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL, verifies the connection, and runs any
// pending schema migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: postgres connection failed: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing database handle without running migrations.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// migrate applies the embedded schema migrations.
func (s *Store) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("audit: load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(s.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("audit: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("audit: migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("audit: migrate up: %w", err)
	}
	return nil
}

// Record appends one action to the log. The action is validated against the
// allowed set before insertion.
func (s *Store) Record(ctx context.Context, chatID, userID int64, action, reason string) error {
	if !validActions[action] {
		return fmt.Errorf("audit: invalid action %q", action)
	}

	const query = `
		INSERT INTO moderation_actions (id, chat_id, user_id, action, reason)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.db.ExecContext(ctx, query, uuid.New(), chatID, userID, action, reason); err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// CountRecent returns the number of actions recorded against a user within
// the given time window, across all chats. Useful for operator tooling
// (e.g. spotting candidates for a global ban).
func (s *Store) CountRecent(ctx context.Context, userID int64, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM moderation_actions
		WHERE user_id = $1
		  AND created_at >= NOW() - $2::interval`

	var count int
	if err := s.db.QueryRowContext(ctx, query, userID, window.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("audit: count recent: %w", err)
	}
	return count, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
