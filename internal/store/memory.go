package store

import (
	"context"
	"sync"

	"github.com/example/table-sniper/internal/prefs"
	"github.com/example/table-sniper/internal/timer"
)

// Memory is a mutex-guarded in-memory Store. Tests inject it in place
// of a real database; `--store memory` uses it for throwaway runs.
type Memory struct {
	mu       sync.Mutex
	prefs    *prefs.Preferences
	timer    *timer.Timer
	attempts []timer.Attempt
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) GetPreferences(ctx context.Context) (prefs.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prefs == nil {
		return prefs.Preferences{}, notFound(keyPreferences)
	}
	return *m.prefs, nil
}

func (m *Memory) SetPreferences(ctx context.Context, p prefs.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.prefs = &cp
	return nil
}

func (m *Memory) GetTimer(ctx context.Context) (timer.Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer == nil {
		return timer.Timer{}, notFound(keyTimer)
	}
	return *m.timer, nil
}

func (m *Memory) SetTimer(ctx context.Context, t timer.Timer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := t
	m.timer = &cp
	return nil
}

func (m *Memory) DeleteTimer(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timer = nil
	return nil
}

func (m *Memory) AppendAttempt(ctx context.Context, a timer.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

// RecentAttempts returns up to limit attempts, newest first.
func (m *Memory) RecentAttempts(ctx context.Context, limit int) ([]timer.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []timer.Attempt
	for i := len(m.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.attempts[i])
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }
