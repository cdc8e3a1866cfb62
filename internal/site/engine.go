package site

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/table-sniper/internal/prefs"
	"github.com/example/table-sniper/internal/timeslot"
)

const (
	controlWait  = 4 * time.Second
	calendarWait = 4 * time.Second
	slotWait     = 6 * time.Second
)

// engine carries the flow steps shared by every adapter. The
// per-adapter code contributes selectors and the site's fill mechanics;
// candidate iteration and slot activation are identical everywhere.
type engine struct {
	platform Platform
	prof     Profile
	log      *slog.Logger
}

func newEngine(platform Platform, prof Profile, log *slog.Logger) engine {
	if log == nil {
		log = slog.Default()
	}
	return engine{platform: platform, prof: prof, log: log.With("platform", platform)}
}

// tryCandidates runs the scheduled-mode loop: build the availability
// map once, then probe each candidate date present in it, in input
// order, strictly sequentially. A per-date failure moves on to the next
// date; only a booked slot short-circuits. openCalendar, when non-nil,
// is the site-specific action that makes the calendar visible first.
func (e *engine) tryCandidates(ctx context.Context, p prefs.Preferences, dates []string, openCalendar func(context.Context) error) (booked bool, err error) {
	defer func() {
		// The adapter boundary converts anything unexpected into a
		// boolean failure with a diagnostic.
		if r := recover(); r != nil {
			booked, err = false, fmt.Errorf("%s adapter: %v", e.platform, r)
		}
	}()

	targetMin, err := timeslot.ParseClock(p.PrimaryTime)
	if err != nil {
		return false, err
	}

	if openCalendar != nil {
		if err := openCalendar(ctx); err != nil {
			e.log.Debug("calendar open step failed, it may already be visible", "error", err)
		}
	}
	if err := waitFor(ctx, e.prof.CalendarRoot, calendarWait); err != nil {
		return false, fmt.Errorf("availability calendar never appeared: %w", err)
	}
	html, err := outerHTML(ctx, e.prof.CalendarRoot)
	if err != nil {
		return false, err
	}
	avail, err := parseAvailability(html, e.prof)
	if err != nil {
		return false, fmt.Errorf("parse availability: %w", err)
	}
	e.log.Info("availability map built", "bookable_dates", len(avail), "candidates", len(dates))

	for _, date := range dates {
		if !avail[date] {
			// Sold-out / disabled dates are skipped, not wasted
			// attempts.
			e.log.Info("skipping date without availability", "date", date)
			continue
		}
		ok, err := e.tryDate(ctx, date, targetMin)
		if err != nil {
			e.log.Warn("candidate date probe failed", "date", date, "error", err)
			continue
		}
		if ok {
			e.log.Info("slot activated", "date", date)
			return true, nil
		}
	}
	return false, nil
}

// tryDate selects one calendar day in place (a cell click, not a page
// navigation) and tries to activate a slot for it.
func (e *engine) tryDate(ctx context.Context, date string, targetMin int) (bool, error) {
	// Re-read the calendar: selecting previous candidates mutates it.
	html, err := outerHTML(ctx, e.prof.CalendarRoot)
	if err != nil {
		return false, err
	}
	idx, found := dayCellIndex(html, e.prof, date)
	if !found {
		return false, fmt.Errorf("day cell for %s not in calendar", date)
	}
	// The index came from the calendar root's markup, so the click must
	// query within the same root.
	if err := clickNthWithin(ctx, e.prof.CalendarRoot, e.prof.DayCells, idx); err != nil {
		return false, err
	}
	return e.activateSlot(ctx, targetMin)
}

// activateSlot waits (bounded) for slot controls to render, matches the
// preferred time against the visible labels and clicks the winner.
func (e *engine) activateSlot(ctx context.Context, targetMin int) (bool, error) {
	if err := waitFor(ctx, e.prof.SlotButtons, slotWait); err != nil {
		e.log.Info("no slot controls rendered", "error", err)
		return false, nil
	}
	labelSel := e.prof.SlotLabel
	if labelSel == "" {
		labelSel = e.prof.SlotButtons
	}
	labels, err := nodeTexts(ctx, labelSel)
	if err != nil {
		return false, err
	}
	idx, ok := timeslot.Nearest(targetMin, labels)
	if !ok {
		e.log.Info("no parseable slot labels", "labels", len(labels))
		return false, nil
	}
	if err := clickNth(ctx, e.prof.SlotButtons, idx); err != nil {
		return false, err
	}
	e.log.Info("clicked slot", "label", labels[idx], "wanted", timeslot.FormatLabel(targetMin))
	return true, nil
}

// selectDate drives the manual path's date selection: open the date
// control, wait for the calendar, click the requested day.
func (e *engine) selectDate(ctx context.Context, date string) error {
	if err := click(ctx, e.prof.DateControl); err != nil {
		e.log.Debug("date control click failed, calendar may already be open", "error", err)
	}
	if err := waitFor(ctx, e.prof.CalendarRoot, calendarWait); err != nil {
		return err
	}
	html, err := outerHTML(ctx, e.prof.CalendarRoot)
	if err != nil {
		return err
	}
	idx, found := dayCellIndex(html, e.prof, date)
	if !found {
		return fmt.Errorf("day cell for %s not in calendar", date)
	}
	return clickNthWithin(ctx, e.prof.CalendarRoot, e.prof.DayCells, idx)
}
