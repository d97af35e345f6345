// Package db provides database connection helpers, schema migration, and small data access helpers.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection for the given DSN. The DSN comes from
// config (config.Load owns the DB_DSN default) so there is a single source of
// truth for connection settings.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database DSN")
	}
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and indices.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id SERIAL PRIMARY KEY,
			osu_id TEXT UNIQUE,
			osu_name TEXT,
			twitch_id TEXT,
			twitch_name TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS processed_comments (
			comment_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS beatmap_lengths (
			beatmap_id BIGINT PRIMARY KEY,
			beatmap_set_id BIGINT,
			start_offset_ms INTEGER,
			end_offset_ms INTEGER,
			length_seconds INTEGER,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS vod_trackers (
			id SERIAL PRIMARY KEY,
			thread_id TEXT,
			twitch_id TEXT,
			play_start TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			payload JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS oauth_tokens (
			provider TEXT PRIMARY KEY,
			access_token TEXT,
			refresh_token TEXT,
			expires_at TIMESTAMPTZ,
			scope TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			encryption_version INTEGER DEFAULT 0,
			encryption_key_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS event_logs (
			id SERIAL PRIMARY KEY,
			comment_id TEXT,
			thread_id TEXT,
			player_id TEXT,
			score_id TEXT,
			message TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_osu_id ON players(osu_id)`,
		`CREATE INDEX IF NOT EXISTS idx_players_twitch_name ON players(twitch_name)`,
		`CREATE INDEX IF NOT EXISTS idx_trackers_twitch_id ON vod_trackers(twitch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trackers_expires ON vod_trackers(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_event_logs_comment ON event_logs(comment_id)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}

// identPattern strips anything outside [A-Za-z_] from table/column identifiers
// before they are interpolated into SQL text. Values always go through
// placeholders; only identifiers need this.
var identPattern = regexp.MustCompile(`[^A-Za-z_]`)

func sanitizeIdent(s string) string {
	return identPattern.ReplaceAllString(s, "")
}

// ExistsBy reports whether any row in table has column = value.
func ExistsBy(ctx context.Context, dbx *sql.DB, table, column string, value any) (bool, error) {
	table, column = sanitizeIdent(table), sanitizeIdent(column)
	var one int
	err := dbx.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = $1 LIMIT 1`, table, column), value).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteBy removes all rows in table with column = value and returns the count.
func DeleteBy(ctx context.Context, dbx *sql.DB, table, column string, value any) (int64, error) {
	table, column = sanitizeIdent(table), sanitizeIdent(column)
	res, err := dbx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, column), value)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetKV upserts a small piece of process state (e.g., the reconcile gate timestamp).
func SetKV(ctx context.Context, dbx *sql.DB, key, value string) error {
	_, err := dbx.ExecContext(ctx, `INSERT INTO kv (key,value,updated_at) VALUES ($1,$2,NOW())
		ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, key, value)
	return err
}

// GetKV returns the stored value for key, or "" when absent.
func GetKV(ctx context.Context, dbx *sql.DB, key string) (string, error) {
	var v string
	err := dbx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=$1`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}
