package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/table-sniper/internal/prefs"
	"github.com/example/table-sniper/internal/timer"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLite backs the store with a single database file; the directory is
// created if needed.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) getKV(ctx context.Context, key string, dst any) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(key)
		}
		return fmt.Errorf("kv get %q: %w", key, err)
	}
	return json.Unmarshal([]byte(raw), dst)
}

func (s *SQLite) setKV(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO kv(key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`, key, string(raw))
	return err
}

func (s *SQLite) GetPreferences(ctx context.Context) (prefs.Preferences, error) {
	var p prefs.Preferences
	err := s.getKV(ctx, keyPreferences, &p)
	return p, err
}

func (s *SQLite) SetPreferences(ctx context.Context, p prefs.Preferences) error {
	return s.setKV(ctx, keyPreferences, p)
}

func (s *SQLite) GetTimer(ctx context.Context) (timer.Timer, error) {
	var t timer.Timer
	err := s.getKV(ctx, keyTimer, &t)
	return t, err
}

func (s *SQLite) SetTimer(ctx context.Context, t timer.Timer) error {
	return s.setKV(ctx, keyTimer, t)
}

func (s *SQLite) DeleteTimer(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, keyTimer)
	return err
}

func (s *SQLite) AppendAttempt(ctx context.Context, a timer.Attempt) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO attempts(timer_id, platform, kind, success, diagnostic, at)
VALUES (?,?,?,?,?,?)`,
		a.TimerID, a.Platform, a.Kind, a.Success, a.Diagnostic, a.At)
	return err
}

func (s *SQLite) RecentAttempts(ctx context.Context, limit int) ([]timer.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT timer_id, platform, kind, success, diagnostic, at
FROM attempts ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []timer.Attempt
	for rows.Next() {
		var a timer.Attempt
		if err := rows.Scan(&a.TimerID, &a.Platform, &a.Kind, &a.Success, &a.Diagnostic, &a.At); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error { return s.db.Close() }
