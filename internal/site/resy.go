package site

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/example/table-sniper/internal/prefs"
	"github.com/example/table-sniper/internal/timeslot"
)

// Resy is site adapter B. Party size is a +/- stepper rather than a
// select, and the venue page re-queries availability on every control
// change.
type Resy struct {
	engine
}

func NewResy(prof Profile, log *slog.Logger) *Resy {
	return &Resy{engine: newEngine(PlatformResy, prof, log)}
}

func (a *Resy) Platform() Platform { return PlatformResy }

func (a *Resy) FillAndSubmit(ctx context.Context, p prefs.Preferences) (booked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			booked, err = false, fmt.Errorf("resy adapter: %v", r)
		}
	}()

	if err := waitFor(ctx, a.prof.PartyValue, controlWait); err != nil {
		return false, err
	}
	if err := a.setPartySize(ctx, p.PartySize); err != nil {
		return false, err
	}
	if err := a.selectDate(ctx, p.PrimaryDate); err != nil {
		return false, err
	}
	if a.prof.TimeControl != "" {
		if err := setValue(ctx, a.prof.TimeControl, p.PrimaryTime); err != nil {
			// The venue page defaults to showing all times; a missing
			// time filter narrows nothing.
			a.log.Debug("time filter not set", "error", err)
		}
	}
	if a.prof.SearchButton != "" {
		if err := click(ctx, a.prof.SearchButton); err != nil {
			a.log.Debug("search control not clicked, page updates on change", "error", err)
		}
	}

	targetMin, err := timeslot.ParseClock(p.PrimaryTime)
	if err != nil {
		return false, err
	}
	return a.activateSlot(ctx, targetMin)
}

func (a *Resy) TryCandidateDates(ctx context.Context, p prefs.Preferences, dates []string) (bool, error) {
	return a.tryCandidates(ctx, p, dates, func(ctx context.Context) error {
		return click(ctx, a.prof.DateControl)
	})
}

// setPartySize walks the stepper from its displayed value to the
// requested one. The loop is bounded by the site's own party-size
// range, so a stuck stepper cannot spin forever.
func (a *Resy) setPartySize(ctx context.Context, want int) error {
	txt, err := nodeText(ctx, a.prof.PartyValue)
	if err != nil {
		return err
	}
	cur, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(txt, "Party of ")))
	if err != nil {
		return fmt.Errorf("party size display %q: %w", txt, err)
	}
	for i := 0; cur != want && i < prefs.MaxPartySize; i++ {
		sel := a.prof.PartyIncrement
		step := 1
		if cur > want {
			sel = a.prof.PartyDecrement
			step = -1
		}
		if err := click(ctx, sel); err != nil {
			return err
		}
		cur += step
	}
	if cur != want {
		return fmt.Errorf("party stepper stuck at %d, wanted %d", cur, want)
	}
	return nil
}
