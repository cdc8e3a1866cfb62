package site

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/example/table-sniper/internal/prefs"
	"github.com/example/table-sniper/internal/timeslot"
)

// Tock is site adapter C. Its search form resembles OpenTable's, but
// results render as an experience list whose items carry the slot
// time.
type Tock struct {
	engine
}

func NewTock(prof Profile, log *slog.Logger) *Tock {
	return &Tock{engine: newEngine(PlatformTock, prof, log)}
}

func (a *Tock) Platform() Platform { return PlatformTock }

func (a *Tock) FillAndSubmit(ctx context.Context, p prefs.Preferences) (booked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			booked, err = false, fmt.Errorf("tock adapter: %v", r)
		}
	}()

	if err := waitFor(ctx, a.prof.PartyControl, controlWait); err != nil {
		return false, err
	}
	if err := setValue(ctx, a.prof.PartyControl, strconv.Itoa(p.PartySize)); err != nil {
		return false, err
	}
	if err := a.selectDate(ctx, p.PrimaryDate); err != nil {
		return false, err
	}
	if err := setValue(ctx, a.prof.TimeControl, p.PrimaryTime); err != nil {
		a.log.Debug("time filter not set", "error", err)
	}
	if err := click(ctx, a.prof.SearchButton); err != nil {
		return false, err
	}

	targetMin, err := timeslot.ParseClock(p.PrimaryTime)
	if err != nil {
		return false, err
	}
	return a.activateSlot(ctx, targetMin)
}

func (a *Tock) TryCandidateDates(ctx context.Context, p prefs.Preferences, dates []string) (bool, error) {
	// Tock keeps its calendar visible on the search page; no opener
	// step needed.
	return a.tryCandidates(ctx, p, dates, nil)
}
