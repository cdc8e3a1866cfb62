package timer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/table-sniper/internal/prefs"
	"github.com/example/table-sniper/internal/store"
	"github.com/example/table-sniper/internal/timer"
)

type fakeAlarm struct {
	mu     sync.Mutex
	armed  map[string]float64
	lastAr string
}

func newFakeAlarm() *fakeAlarm { return &fakeAlarm{armed: map[string]float64{}} }

func (a *fakeAlarm) Arm(name string, delayMinutes float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed[name] = delayMinutes
	a.lastAr = name
}

func (a *fakeAlarm) Cancel(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.armed[name]
	delete(a.armed, name)
	return ok
}

func (a *fakeAlarm) Exists(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.armed[name]
	return ok
}

func (a *fakeAlarm) lastArmed() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAr
}

func (a *fakeAlarm) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.armed)
}

type fakeRunner struct {
	mu sync.Mutex

	platform    string
	platformErr error
	reloadErrs  []error // consumed per call, nil past the end
	results     []bool  // RunScheduled outcomes, last repeats
	runErr      error

	reloads    int
	scheduled  int
	immediates int
	gotDates   [][]string
	panicOnce  bool

	// started is closed when RunScheduled is first entered; block, when
	// non-nil, holds RunScheduled until the test releases it.
	started chan struct{}
	block   chan struct{}
}

func (r *fakeRunner) Platform(ctx context.Context, tabID string) (string, error) {
	if r.platformErr != nil {
		return "", r.platformErr
	}
	if r.platform == "" {
		return "opentable", nil
	}
	return r.platform, nil
}

func (r *fakeRunner) Prepare(ctx context.Context, tabID string, p prefs.Preferences) error {
	return nil
}

func (r *fakeRunner) Reload(ctx context.Context, tabID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloads++
	if len(r.reloadErrs) > 0 {
		err := r.reloadErrs[0]
		r.reloadErrs = r.reloadErrs[1:]
		return err
	}
	return nil
}

func (r *fakeRunner) RunScheduled(ctx context.Context, tabID string, p prefs.Preferences, dates []string) (bool, error) {
	r.mu.Lock()
	if r.panicOnce {
		r.panicOnce = false
		r.mu.Unlock()
		panic("selector blew up")
	}
	started, block := r.started, r.block
	r.started = nil
	r.mu.Unlock()
	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled++
	r.gotDates = append(r.gotDates, dates)
	if r.runErr != nil {
		return false, r.runErr
	}
	if len(r.results) == 0 {
		return false, nil
	}
	idx := r.scheduled - 1
	if idx >= len(r.results) {
		idx = len(r.results) - 1
	}
	return r.results[idx], nil
}

func (r *fakeRunner) RunImmediate(ctx context.Context, tabID string, p prefs.Preferences) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.immediates++
	if len(r.results) > 0 {
		return r.results[0], r.runErr
	}
	return false, r.runErr
}

func (r *fakeRunner) scheduledCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scheduled
}

var baseNow = time.Date(2026, 9, 10, 20, 59, 0, 0, time.UTC)

func newScheduler(t *testing.T, run *fakeRunner) (*timer.Scheduler, *store.Memory, *fakeAlarm) {
	t.Helper()
	st := store.NewMemory()
	al := newFakeAlarm()
	s := timer.New(st, al, run, nil, nil)
	s.SetClock(func() time.Time { return baseNow })
	return s, st, al
}

func schedulablePrefs() prefs.Preferences {
	return prefs.Preferences{
		PartySize:   2,
		PrimaryDate: "2026-09-17",
		PrimaryTime: "19:00",
		DropTime:    time.Date(2026, 9, 10, 21, 0, 0, 0, time.UTC),
	}
}

func TestScheduleArmsAlarmAndPersists(t *testing.T) {
	run := &fakeRunner{}
	s, st, al := newScheduler(t, run)

	p := schedulablePrefs()
	p.SearchOffsetMs = 1500

	tm, err := s.Schedule(context.Background(), p, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, timer.StatusScheduled, tm.Status)
	assert.Equal(t, "opentable", tm.Platform)
	assert.Equal(t, p.DropTime.Add(-1500*time.Millisecond), tm.FireTime)
	assert.Equal(t, 1, tm.MaxAttempts)

	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tm.ID, stored.ID)

	storedPrefs, err := st.GetPreferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p.SearchOffsetMs, storedPrefs.SearchOffsetMs)

	assert.Equal(t, 1, al.count())
	// drop 21:00:00 minus 1.5s offset, from 20:59:00.
	assert.InDelta(t, 58.5/60.0, al.armed[al.lastArmed()], 1e-9)
}

func TestScheduleNegativeOffsetFiresAfterDrop(t *testing.T) {
	run := &fakeRunner{}
	s, _, _ := newScheduler(t, run)

	p := schedulablePrefs()
	p.SearchOffsetMs = -1500

	tm, err := s.Schedule(context.Background(), p, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 10, 21, 0, 1, 500_000_000, time.UTC), tm.FireTime)
}

func TestSchedulePastDropRejectedWithoutMutation(t *testing.T) {
	run := &fakeRunner{}
	s, st, al := newScheduler(t, run)

	first, err := s.Schedule(context.Background(), schedulablePrefs(), "tab-1")
	require.NoError(t, err)

	past := schedulablePrefs()
	past.DropTime = baseNow.Add(-time.Hour)
	_, err = s.Schedule(context.Background(), past, "tab-1")
	assert.ErrorIs(t, err, timer.ErrSchedulePast)

	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID, "failed schedule leaves the prior timer untouched")
	assert.Equal(t, 1, al.count())
}

func TestScheduleMissingDropTime(t *testing.T) {
	run := &fakeRunner{}
	s, _, _ := newScheduler(t, run)

	p := schedulablePrefs()
	p.DropTime = time.Time{}
	_, err := s.Schedule(context.Background(), p, "tab-1")
	assert.ErrorIs(t, err, timer.ErrMissingDropTime)
}

func TestScheduleInvalidPreferences(t *testing.T) {
	run := &fakeRunner{}
	s, _, _ := newScheduler(t, run)

	p := schedulablePrefs()
	p.PartySize = 0
	_, err := s.Schedule(context.Background(), p, "tab-1")
	assert.ErrorIs(t, err, timer.ErrInvalidPreferences)
}

func TestScheduleReplacesPriorTimer(t *testing.T) {
	run := &fakeRunner{}
	s, st, al := newScheduler(t, run)

	first, err := s.Schedule(context.Background(), schedulablePrefs(), "tab-1")
	require.NoError(t, err)
	firstAlarm := al.lastArmed()

	p2 := schedulablePrefs()
	p2.PartySize = 4
	second, err := s.Schedule(context.Background(), p2, "tab-2")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, al.count(), "exactly one alarm armed after replacement")
	assert.False(t, al.Exists(firstAlarm), "prior alarm disarmed")

	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID, stored.ID)
	assert.Equal(t, "tab-2", stored.TargetTabID)

	storedPrefs, err := st.GetPreferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, storedPrefs.PartySize)
}

func TestScheduleUnsupportedTab(t *testing.T) {
	run := &fakeRunner{platformErr: errors.New("no booking widget on example.com")}
	s, st, _ := newScheduler(t, run)

	_, err := s.Schedule(context.Background(), schedulablePrefs(), "tab-1")
	require.Error(t, err)

	_, err = st.GetTimer(context.Background())
	assert.ErrorIs(t, err, timer.ErrNotFound)
}

func TestCancel(t *testing.T) {
	run := &fakeRunner{}
	s, st, al := newScheduler(t, run)

	var transitions []timer.Status
	s.Notify = func(tm timer.Timer) { transitions = append(transitions, tm.Status) }

	_, err := s.Schedule(context.Background(), schedulablePrefs(), "tab-1")
	require.NoError(t, err)

	cancelled, err := s.Cancel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timer.StatusCancelled, cancelled.Status)
	assert.Equal(t, 0, al.count())

	_, err = st.GetTimer(context.Background())
	assert.ErrorIs(t, err, timer.ErrNotFound)

	snap, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Active)
	assert.Nil(t, snap.Timer)

	assert.Equal(t, []timer.Status{timer.StatusScheduled, timer.StatusCancelled}, transitions)
}

func TestCancelWithoutTimer(t *testing.T) {
	run := &fakeRunner{}
	s, _, _ := newScheduler(t, run)

	_, err := s.Cancel(context.Background())
	assert.ErrorIs(t, err, timer.ErrNotFound)
}

func TestFireRunsCycleToCompletion(t *testing.T) {
	run := &fakeRunner{results: []bool{true}}
	s, st, al := newScheduler(t, run)

	p := schedulablePrefs()
	p.DateSelectionMode = prefs.ModeRangeScan
	p.ScanRadiusDays = 1
	_, err := s.Schedule(context.Background(), p, "tab-1")
	require.NoError(t, err)

	s.HandleFire(al.lastArmed())

	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timer.StatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Empty(t, stored.Diagnostic)

	require.Len(t, run.gotDates, 1)
	assert.Equal(t, []string{"2026-09-17", "2026-09-16", "2026-09-18"}, run.gotDates[0])

	attempts, err := st.RecentAttempts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Success)
	assert.Equal(t, "scheduled", attempts[0].Kind)
}

func TestFireAllRefreshAttemptsFail(t *testing.T) {
	run := &fakeRunner{}
	s, st, al := newScheduler(t, run)

	p := schedulablePrefs()
	p.AutoRefreshOnEmpty = true
	p.MaxRefreshAttempts = 3
	_, err := s.Schedule(context.Background(), p, "tab-1")
	require.NoError(t, err)

	s.HandleFire(al.lastArmed())

	assert.Equal(t, 3, run.scheduledCalls(), "one adapter invocation per refresh attempt")

	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timer.StatusFailed, stored.Status)
	assert.Equal(t, 3, stored.Attempts)
	assert.Equal(t, "no bookable slot among candidate dates", stored.Diagnostic)
}

func TestFireSucceedsMidway(t *testing.T) {
	run := &fakeRunner{results: []bool{false, false, true}}
	s, st, al := newScheduler(t, run)

	p := schedulablePrefs()
	p.AutoRefreshOnEmpty = true
	p.MaxRefreshAttempts = 5
	_, err := s.Schedule(context.Background(), p, "tab-1")
	require.NoError(t, err)

	s.HandleFire(al.lastArmed())

	assert.Equal(t, 3, run.scheduledCalls(), "cycle stops at the first success")

	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timer.StatusCompleted, stored.Status)
	assert.Equal(t, 3, stored.Attempts)
}

func TestFireReloadFailureConsumesAttempt(t *testing.T) {
	run := &fakeRunner{
		reloadErrs: []error{errors.New("net::ERR_CONNECTION_RESET")},
		results:    []bool{true},
	}
	s, st, al := newScheduler(t, run)

	p := schedulablePrefs()
	p.AutoRefreshOnEmpty = true
	p.MaxRefreshAttempts = 3
	_, err := s.Schedule(context.Background(), p, "tab-1")
	require.NoError(t, err)

	s.HandleFire(al.lastArmed())

	assert.Equal(t, 2, run.reloads)
	assert.Equal(t, 1, run.scheduledCalls(), "adapter skipped on the failed reload")

	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timer.StatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
}

func TestStaleAlarmIsIgnored(t *testing.T) {
	run := &fakeRunner{results: []bool{true}}
	s, st, al := newScheduler(t, run)

	_, err := s.Schedule(context.Background(), schedulablePrefs(), "tab-1")
	require.NoError(t, err)
	staleName := al.lastArmed()

	// Replace the timer; the first alarm name no longer matches.
	second, err := s.Schedule(context.Background(), schedulablePrefs(), "tab-1")
	require.NoError(t, err)

	s.HandleFire(staleName)

	assert.Equal(t, 0, run.scheduledCalls())
	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID, stored.ID)
	assert.Equal(t, timer.StatusScheduled, stored.Status)
}

func TestScheduleDuringRunningCycleIsNotClobbered(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	run := &fakeRunner{started: started, block: release}
	s, st, al := newScheduler(t, run)

	p := schedulablePrefs()
	p.AutoRefreshOnEmpty = true
	p.MaxRefreshAttempts = 3
	first, err := s.Schedule(context.Background(), p, "tab-1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.HandleFire(al.lastArmed())
		close(done)
	}()
	<-started

	second, err := s.Schedule(context.Background(), schedulablePrefs(), "tab-1")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	close(release)
	<-done

	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID, stored.ID, "replacement timer survives the old cycle's writes")
	assert.Equal(t, timer.StatusScheduled, stored.Status)
	assert.Equal(t, 1, run.scheduledCalls(), "superseded cycle stops at its next persistence point")
	assert.True(t, al.Exists(al.lastArmed()), "replacement alarm stays armed")
}

func TestCancelDuringRunningCycleSkipsTerminalWrite(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	run := &fakeRunner{started: started, block: release}
	s, st, al := newScheduler(t, run)

	_, err := s.Schedule(context.Background(), schedulablePrefs(), "tab-1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.HandleFire(al.lastArmed())
		close(done)
	}()
	<-started

	cancelled, err := s.Cancel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timer.StatusCancelled, cancelled.Status)

	close(release)
	<-done

	_, err = st.GetTimer(context.Background())
	assert.ErrorIs(t, err, timer.ErrNotFound,
		"finished cycle must not resurrect a cancelled timer")
}

func TestFirePanicMarksFailed(t *testing.T) {
	run := &fakeRunner{panicOnce: true}
	s, st, al := newScheduler(t, run)

	_, err := s.Schedule(context.Background(), schedulablePrefs(), "tab-1")
	require.NoError(t, err)

	require.NotPanics(t, func() { s.HandleFire(al.lastArmed()) })

	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timer.StatusFailed, stored.Status)
	assert.Contains(t, stored.Diagnostic, "internal error")
}

func TestFillNow(t *testing.T) {
	run := &fakeRunner{results: []bool{true}}
	s, st, _ := newScheduler(t, run)

	p := schedulablePrefs()
	p.DropTime = time.Time{} // manual mode needs no drop

	ok, err := s.FillNow(context.Background(), p, "tab-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, run.immediates)

	attempts, err := st.RecentAttempts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "manual", attempts[0].Kind)
	assert.True(t, attempts[0].Success)
}

func TestFillNowInvalidPreferences(t *testing.T) {
	run := &fakeRunner{}
	s, _, _ := newScheduler(t, run)

	p := schedulablePrefs()
	p.PrimaryDate = "next friday"
	_, err := s.FillNow(context.Background(), p, "tab-1")
	assert.ErrorIs(t, err, timer.ErrInvalidPreferences)
	assert.Equal(t, 0, run.immediates)
}

func TestRecoverRearmsFutureTimer(t *testing.T) {
	run := &fakeRunner{}
	s, st, al := newScheduler(t, run)

	tm := timer.Timer{
		ID:       "abc",
		Platform: "resy",
		FireTime: baseNow.Add(30 * time.Minute),
		Status:   timer.StatusScheduled,
	}
	require.NoError(t, st.SetTimer(context.Background(), tm))

	require.NoError(t, s.Recover(context.Background()))
	assert.Equal(t, 1, al.count())
	assert.InDelta(t, 30.0, al.armed[al.lastArmed()], 1e-9)
}

func TestRecoverDiscardsExpiredTimer(t *testing.T) {
	run := &fakeRunner{}
	s, st, al := newScheduler(t, run)

	tm := timer.Timer{
		ID:       "abc",
		FireTime: baseNow.Add(-time.Minute),
		Status:   timer.StatusScheduled,
	}
	require.NoError(t, st.SetTimer(context.Background(), tm))

	require.NoError(t, s.Recover(context.Background()))
	assert.Equal(t, 0, al.count())

	_, err := st.GetTimer(context.Background())
	assert.ErrorIs(t, err, timer.ErrNotFound)
}

func TestRecoverFailsInterruptedRun(t *testing.T) {
	run := &fakeRunner{}
	s, st, _ := newScheduler(t, run)

	tm := timer.Timer{ID: "abc", Status: timer.StatusRunning}
	require.NoError(t, st.SetTimer(context.Background(), tm))

	require.NoError(t, s.Recover(context.Background()))

	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timer.StatusFailed, stored.Status)
	assert.Equal(t, "interrupted by process restart", stored.Diagnostic)
}

func TestRecoverNoTimer(t *testing.T) {
	run := &fakeRunner{}
	s, _, _ := newScheduler(t, run)
	assert.NoError(t, s.Recover(context.Background()))
}

func TestStatusCountdown(t *testing.T) {
	run := &fakeRunner{}
	s, _, _ := newScheduler(t, run)

	_, err := s.Schedule(context.Background(), schedulablePrefs(), "tab-1")
	require.NoError(t, err)

	snap, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Active)
	require.NotNil(t, snap.Timer)
	assert.InDelta(t, 60.0, snap.CountdownSeconds, 1e-9)
}

func TestEndToEndScheduleFireComplete(t *testing.T) {
	run := &fakeRunner{results: []bool{true}}
	s, st, al := newScheduler(t, run)

	var transitions []timer.Status
	s.Notify = func(tm timer.Timer) { transitions = append(transitions, tm.Status) }

	p := schedulablePrefs()
	p.SearchOffsetMs = -1500
	tm, err := s.Schedule(context.Background(), p, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 10, 21, 0, 1, 500_000_000, time.UTC), tm.FireTime)

	s.HandleFire(al.lastArmed())

	stored, err := st.GetTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timer.StatusCompleted, stored.Status)

	assert.Equal(t, []timer.Status{
		timer.StatusScheduled,
		timer.StatusRunning,
		timer.StatusCompleted,
	}, transitions)

	snap, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Active)
	require.NotNil(t, snap.LastAttempt)
	assert.True(t, snap.LastAttempt.Success)
}
