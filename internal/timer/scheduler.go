package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/table-sniper/internal/metrics"
	"github.com/example/table-sniper/internal/prefs"
)

// Runner executes browser work for one attempt cycle. The production
// implementation wraps the chromedp bridge and the per-site adapters;
// tests supply fakes.
type Runner interface {
	// Platform reports the detected booking platform of the tab.
	Platform(ctx context.Context, tabID string) (string, error)
	// Prepare runs any eager setup a platform wants at schedule time
	// (OpenTable pre-navigates to the parameterized search URL so the
	// fire-time reload is a same-URL refresh). No-op elsewhere.
	Prepare(ctx context.Context, tabID string, p prefs.Preferences) error
	// Reload refreshes the tab and waits for navigation to complete,
	// bounded.
	Reload(ctx context.Context, tabID string) error
	// RunScheduled drives the scheduled-mode adapter entry point with a
	// prebuilt candidate date list.
	RunScheduled(ctx context.Context, tabID string, p prefs.Preferences, dates []string) (bool, error)
	// RunImmediate drives the manual fill-and-submit path.
	RunImmediate(ctx context.Context, tabID string, p prefs.Preferences) (bool, error)
}

// Scheduler converts a drop time into an armed alarm and drives the
// attempt cycle when it fires. At most one Timer exists at a time:
// Schedule force-cancels the previous one before creating its
// replacement.
type Scheduler struct {
	store Store
	alarm Alarm
	run   Runner
	log   *slog.Logger
	met   *metrics.Metrics

	// Notify, when set, receives every persisted status transition.
	// Display-only; the persisted Timer stays the source of truth.
	Notify func(Timer)

	// CycleTimeout bounds one whole attempt cycle.
	CycleTimeout time.Duration

	now func() time.Time
	mu  sync.Mutex
}

func New(st Store, al Alarm, run Runner, log *slog.Logger, met *metrics.Metrics) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		store:        st,
		alarm:        al,
		run:          run,
		log:          log,
		met:          met,
		CycleTimeout: 2 * time.Minute,
		now:          time.Now,
	}
}

// SetClock overrides the scheduler's notion of now. Test hook.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

func alarmName(id string) string { return "drop-" + id }

// Schedule validates the preferences, cancels any prior timer, persists
// a fresh scheduled Timer and arms its alarm. A validation failure
// leaves any previously scheduled timer untouched.
func (s *Scheduler) Schedule(ctx context.Context, p prefs.Preferences, tabID string) (Timer, error) {
	if err := p.Validate(); err != nil {
		return Timer{}, fmt.Errorf("%w: %w", ErrInvalidPreferences, err)
	}
	if !p.Scheduled() {
		return Timer{}, ErrMissingDropTime
	}
	now := s.now()
	fire := p.FireTime()
	if !fire.After(now) {
		return Timer{}, fmt.Errorf("%w: fire time %s, now %s", ErrSchedulePast,
			fire.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	platform, err := s.run.Platform(ctx, tabID)
	if err != nil {
		return Timer{}, fmt.Errorf("tab %s is not on a supported booking site: %w", tabID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.GetTimer(ctx)
	switch {
	case err == nil:
		s.alarm.Cancel(alarmName(prev.ID))
		if err := s.store.DeleteTimer(ctx); err != nil {
			return Timer{}, fmt.Errorf("replace previous timer: %w", err)
		}
		s.log.Info("replaced previous timer", "id", prev.ID, "status", prev.Status)
	case !errors.Is(err, ErrNotFound):
		return Timer{}, fmt.Errorf("load previous timer: %w", err)
	}

	if err := s.store.SetPreferences(ctx, p); err != nil {
		return Timer{}, fmt.Errorf("persist preferences: %w", err)
	}

	maxAttempts := 1
	if p.AutoRefreshOnEmpty && p.MaxRefreshAttempts > 0 {
		maxAttempts = p.MaxRefreshAttempts
	}
	t := Timer{
		ID:          uuid.NewString(),
		Platform:    platform,
		DropTime:    p.DropTime,
		FireTime:    fire,
		Status:      StatusScheduled,
		TargetTabID: tabID,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
	}
	if err := s.store.SetTimer(ctx, t); err != nil {
		return Timer{}, fmt.Errorf("persist timer: %w", err)
	}
	s.alarm.Arm(alarmName(t.ID), fire.Sub(now).Minutes())
	s.met.Schedule()
	s.log.Info("timer scheduled", "id", t.ID, "platform", platform,
		"fire_time", fire.Format(time.RFC3339), "max_attempts", maxAttempts)

	if err := s.run.Prepare(ctx, tabID, p); err != nil {
		// Pre-navigation is an optimization; the fire-time reload still
		// fetches fresh data without it.
		s.log.Warn("pre-navigation failed", "id", t.ID, "error", err)
	}

	s.notify(t)
	return t, nil
}

// Cancel clears the pending alarm (idempotently) and deletes the
// persisted timer. An in-flight running cycle notices the deletion at
// its next persistence point and stops without a terminal write.
func (s *Scheduler) Cancel(ctx context.Context) (Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.store.GetTimer(ctx)
	if err != nil {
		return Timer{}, err
	}
	s.alarm.Cancel(alarmName(t.ID))
	t.Status = StatusCancelled
	if err := s.store.DeleteTimer(ctx); err != nil {
		return Timer{}, fmt.Errorf("delete timer: %w", err)
	}
	s.met.Cancel()
	s.log.Info("timer cancelled", "id", t.ID)
	s.notify(t)
	return t, nil
}

// HandleFire is the alarm callback. It is the top-level boundary for
// the attempt cycle: nothing escapes it, every outcome lands in the
// persisted Timer status.
func (s *Scheduler) HandleFire(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.CycleTimeout)
	defer cancel()
	s.runCycle(ctx, name)
}

func (s *Scheduler) runCycle(ctx context.Context, name string) {
	var t Timer
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("attempt cycle panicked", "alarm", name, "panic", r)
			s.failCurrent(t.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	var err error
	t, err = s.store.GetTimer(ctx)
	if err != nil || alarmName(t.ID) != name || t.Status != StatusScheduled {
		// Stale alarm: cancelled or superseded after arming. Expected,
		// not an error.
		s.log.Debug("ignoring stale alarm", "alarm", name)
		return
	}

	start := s.now()
	t.Status = StatusRunning
	if !s.persistCurrent(ctx, t) {
		return
	}
	s.notify(t)
	s.log.Info("attempt cycle started", "id", t.ID, "platform", t.Platform)

	p, err := s.store.GetPreferences(ctx)
	if err != nil {
		s.finishCycle(ctx, t, false, "preferences missing at fire time", start)
		return
	}
	dates := prefs.BuildCandidates(p)

	success := false
	diag := ""
	for attempt := 1; attempt <= t.MaxAttempts; attempt++ {
		t.Attempts = attempt
		if !s.persistCurrent(ctx, t) {
			s.log.Info("timer superseded mid-cycle, stopping", "id", t.ID)
			return
		}

		if err := s.run.Reload(ctx, t.TargetTabID); err != nil {
			diag = fmt.Sprintf("reload: %v", err)
			s.log.Warn("tab reload failed", "id", t.ID, "attempt", attempt, "error", err)
			s.record(ctx, t, "scheduled", false, diag)
			continue
		}

		ok, rerr := s.run.RunScheduled(ctx, t.TargetTabID, p, dates)
		switch {
		case ok:
			success, diag = true, ""
		case rerr != nil:
			diag = rerr.Error()
		default:
			diag = "no bookable slot among candidate dates"
		}
		s.record(ctx, t, "scheduled", ok, diag)
		s.met.Attempt(t.Platform, "scheduled", ok)
		if ok {
			break
		}
		// Refresh retries absorb backend propagation lag, so the next
		// reload starts immediately.
	}

	s.finishCycle(ctx, t, success, diag, start)
}

func (s *Scheduler) finishCycle(ctx context.Context, t Timer, success bool, diag string, start time.Time) {
	if success {
		t.Status = StatusCompleted
		t.Diagnostic = ""
	} else {
		t.Status = StatusFailed
		t.Diagnostic = diag
	}
	if !s.persistCurrent(ctx, t) {
		s.log.Info("timer superseded, skipping terminal write", "id", t.ID)
		return
	}
	s.met.Cycle(s.now().Sub(start).Seconds())
	s.log.Info("attempt cycle finished", "id", t.ID, "status", t.Status,
		"attempts", t.Attempts, "diagnostic", diag)
	s.notify(t)
}

// persistCurrent writes t back only while it is still the persisted
// record. Schedule and Cancel swap or delete the record under mu; a
// cycle whose timer was superseded must not clobber the replacement.
// Reports false when the record is gone or carries a different ID.
func (s *Scheduler) persistCurrent(ctx context.Context, t Timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.store.GetTimer(ctx)
	if err != nil || cur.ID != t.ID {
		return false
	}
	if err := s.store.SetTimer(ctx, t); err != nil {
		s.log.Error("persist timer state", "id", t.ID, "status", t.Status, "error", err)
	}
	return true
}

// failCurrent force-fails the persisted timer if it still belongs to
// the panicked cycle. Used only from the panic boundary, where the
// in-memory copy may be stale.
func (s *Scheduler) failCurrent(id, diag string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.store.GetTimer(ctx)
	if err != nil || t.ID != id || t.Status.Terminal() {
		return
	}
	t.Status = StatusFailed
	t.Diagnostic = diag
	_ = s.store.SetTimer(ctx, t)
	s.notify(t)
}

// FillNow drives the manual fill-and-submit path outside any timer.
func (s *Scheduler) FillNow(ctx context.Context, p prefs.Preferences, tabID string) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidPreferences, err)
	}
	platform, err := s.run.Platform(ctx, tabID)
	if err != nil {
		return false, fmt.Errorf("tab %s is not on a supported booking site: %w", tabID, err)
	}
	ok, rerr := s.run.RunImmediate(ctx, tabID, p)
	diag := ""
	if rerr != nil {
		diag = rerr.Error()
	}
	s.record(ctx, Timer{Platform: platform}, "manual", ok, diag)
	s.met.Attempt(platform, "manual", ok)
	return ok, rerr
}

// Recover reconciles the persisted timer with reality after a process
// restart: a scheduled timer whose alarm was lost is re-armed if its
// fire time is still ahead, discarded as expired if not; a running
// timer was interrupted mid-cycle and is marked failed.
func (s *Scheduler) Recover(ctx context.Context) error {
	t, err := s.store.GetTimer(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	switch t.Status {
	case StatusScheduled:
		name := alarmName(t.ID)
		if !t.FireTime.After(s.now()) {
			s.log.Info("discarding expired timer", "id", t.ID, "fire_time", t.FireTime)
			return s.store.DeleteTimer(ctx)
		}
		if !s.alarm.Exists(name) {
			s.alarm.Arm(name, t.FireTime.Sub(s.now()).Minutes())
			s.log.Info("re-armed timer after restart", "id", t.ID, "fire_time", t.FireTime)
		}
	case StatusRunning:
		t.Status = StatusFailed
		t.Diagnostic = "interrupted by process restart"
		s.log.Warn("marking interrupted timer failed", "id", t.ID)
		return s.store.SetTimer(ctx, t)
	}
	return nil
}

// Snapshot is the status surface the control API serves. It exposes
// only the terminal classification plus a short diagnostic, never raw
// internals.
type Snapshot struct {
	Active           bool     `json:"active"`
	Timer            *Timer   `json:"timer,omitempty"`
	CountdownSeconds float64  `json:"countdownSeconds,omitempty"`
	LastAttempt      *Attempt `json:"lastAttempt,omitempty"`
}

func (s *Scheduler) Status(ctx context.Context) (Snapshot, error) {
	t, err := s.store.GetTimer(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Snapshot{Active: false}, nil
		}
		return Snapshot{}, err
	}
	snap := Snapshot{Active: !t.Status.Terminal(), Timer: &t}
	if t.Status == StatusScheduled {
		if d := t.FireTime.Sub(s.now()).Seconds(); d > 0 {
			snap.CountdownSeconds = d
		}
	}
	if as, err := s.store.RecentAttempts(ctx, 1); err == nil && len(as) > 0 {
		snap.LastAttempt = &as[0]
	}
	return snap, nil
}

func (s *Scheduler) record(ctx context.Context, t Timer, kind string, ok bool, diag string) {
	a := Attempt{
		TimerID:    t.ID,
		Platform:   t.Platform,
		Kind:       kind,
		Success:    ok,
		Diagnostic: diag,
		At:         s.now(),
	}
	if err := s.store.AppendAttempt(ctx, a); err != nil {
		s.log.Warn("append attempt record", "error", err)
	}
}

func (s *Scheduler) notify(t Timer) {
	if s.Notify != nil {
		s.Notify(t)
	}
}
