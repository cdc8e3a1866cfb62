package store

import (
	"context"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/table-sniper/internal/prefs"
	"github.com/example/table-sniper/internal/timer"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Postgres backs the store with a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Postgres{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Postgres) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigrations)
	return err
}

func (s *Postgres) getKV(ctx context.Context, key string, dst any) error {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key=$1`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound(key)
		}
		return fmt.Errorf("kv get %q: %w", key, err)
	}
	return json.Unmarshal(raw, dst)
}

func (s *Postgres) setKV(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO kv(key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`, key, raw)
	return err
}

func (s *Postgres) GetPreferences(ctx context.Context) (prefs.Preferences, error) {
	var p prefs.Preferences
	err := s.getKV(ctx, keyPreferences, &p)
	return p, err
}

func (s *Postgres) SetPreferences(ctx context.Context, p prefs.Preferences) error {
	return s.setKV(ctx, keyPreferences, p)
}

func (s *Postgres) GetTimer(ctx context.Context) (timer.Timer, error) {
	var t timer.Timer
	err := s.getKV(ctx, keyTimer, &t)
	return t, err
}

func (s *Postgres) SetTimer(ctx context.Context, t timer.Timer) error {
	return s.setKV(ctx, keyTimer, t)
}

func (s *Postgres) DeleteTimer(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE key=$1`, keyTimer)
	return err
}

func (s *Postgres) AppendAttempt(ctx context.Context, a timer.Attempt) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO attempts(timer_id, platform, kind, success, diagnostic, at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		a.TimerID, a.Platform, a.Kind, a.Success, a.Diagnostic, a.At)
	return err
}

func (s *Postgres) RecentAttempts(ctx context.Context, limit int) ([]timer.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
SELECT timer_id, platform, kind, success, diagnostic, at
FROM attempts ORDER BY at DESC, id DESC LIMIT $1`, limit)
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

func (s *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
