package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/table-sniper/internal/prefs"
	"github.com/example/table-sniper/internal/timer"
)

func TestMemoryPreferences(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.GetPreferences(ctx)
	assert.ErrorIs(t, err, timer.ErrNotFound)

	p := prefs.Preferences{PartySize: 4, PrimaryDate: "2026-09-17", PrimaryTime: "19:00"}
	require.NoError(t, m.SetPreferences(ctx, p))

	got, err := m.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	// The stored copy is detached from the caller's value.
	p.PartySize = 8
	got, err = m.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, got.PartySize)
}

func TestMemoryTimerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.GetTimer(ctx)
	assert.ErrorIs(t, err, timer.ErrNotFound)

	tm := timer.Timer{ID: "abc", Status: timer.StatusScheduled}
	require.NoError(t, m.SetTimer(ctx, tm))

	got, err := m.GetTimer(ctx)
	require.NoError(t, err)
	assert.Equal(t, tm, got)

	require.NoError(t, m.DeleteTimer(ctx))
	_, err = m.GetTimer(ctx)
	assert.ErrorIs(t, err, timer.ErrNotFound)

	assert.NoError(t, m.DeleteTimer(ctx), "delete is idempotent")
}

func TestMemoryRecentAttemptsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	base := time.Date(2026, 9, 10, 21, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.AppendAttempt(ctx, timer.Attempt{
			TimerID: "abc",
			Kind:    "scheduled",
			At:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := m.RecentAttempts(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, base.Add(4*time.Second), got[0].At)
	assert.Equal(t, base.Add(2*time.Second), got[2].At)

	all, err := m.RecentAttempts(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestOpenSelectsMemoryBackend(t *testing.T) {
	ctx := context.Background()
	for _, dsn := range []string{"", "memory"} {
		st, err := Open(ctx, dsn)
		require.NoError(t, err)
		_, ok := st.(*Memory)
		assert.True(t, ok, dsn)
		assert.NoError(t, st.Ping(ctx))
		assert.NoError(t, st.Close())
	}
}
