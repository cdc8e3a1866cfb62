// Package timer owns the single scheduled booking attempt: the
// persisted Timer record, its status state machine, and the Scheduler
// that arms an alarm for the fire time and drives the attempt cycle
// when it goes off.
package timer

import (
	"context"
	"errors"
	"time"

	"github.com/example/table-sniper/internal/prefs"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition may leave this
// status. Only a fresh Schedule call supersedes a terminal timer.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Timer is the single persisted scheduling record. A new Schedule call
// force-cancels and replaces any prior Timer; the ID correlates the
// armed alarm with this record so stale alarms can be ignored.
type Timer struct {
	ID          string    `json:"id"`
	Platform    string    `json:"platform"`
	DropTime    time.Time `json:"dropTime"`
	FireTime    time.Time `json:"fireTime"`
	Status      Status    `json:"status"`
	TargetTabID string    `json:"targetTabId"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"maxAttempts"`
	Diagnostic  string    `json:"diagnostic,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Attempt is one adapter invocation inside an attempt cycle, recorded
// for diagnostics and the status surface.
type Attempt struct {
	TimerID    string    `json:"timerId"`
	Platform   string    `json:"platform"`
	Kind       string    `json:"kind"` // "scheduled" or "manual"
	Success    bool      `json:"success"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	At         time.Time `json:"at"`
}

// Store is the narrow persistence surface the scheduler needs. The
// Timer record is the single source of truth for status; callers must
// read-modify-write through it.
type Store interface {
	GetPreferences(ctx context.Context) (prefs.Preferences, error)
	SetPreferences(ctx context.Context, p prefs.Preferences) error

	GetTimer(ctx context.Context) (Timer, error)
	SetTimer(ctx context.Context, t Timer) error
	DeleteTimer(ctx context.Context) error

	AppendAttempt(ctx context.Context, a Attempt) error
	RecentAttempts(ctx context.Context, limit int) ([]Attempt, error)
}

// ErrNotFound is returned by Store implementations when no timer (or no
// preferences) record exists.
var ErrNotFound = errors.New("timer: not found")

var (
	ErrInvalidPreferences = errors.New("timer: invalid preferences")
	ErrMissingDropTime    = errors.New("timer: preferences have no drop time")
	ErrSchedulePast       = errors.New("timer: computed fire time is in the past")
)
