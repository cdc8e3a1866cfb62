package site

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/table-sniper/internal/prefs"
	"github.com/example/table-sniper/internal/timeslot"
)

// OpenTable is site adapter A. It is the only platform with a
// fully-parameterized search URL, so scheduling pre-navigates to it and
// the fire-time reload becomes a same-URL refresh.
type OpenTable struct {
	engine
}

func NewOpenTable(prof Profile, log *slog.Logger) *OpenTable {
	return &OpenTable{engine: newEngine(PlatformOpenTable, prof, log)}
}

func (a *OpenTable) Platform() Platform { return PlatformOpenTable }

func (a *OpenTable) FillAndSubmit(ctx context.Context, p prefs.Preferences) (booked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			booked, err = false, fmt.Errorf("opentable adapter: %v", r)
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
		return false, err
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

func (a *OpenTable) TryCandidateDates(ctx context.Context, p prefs.Preferences, dates []string) (bool, error) {
	return a.tryCandidates(ctx, p, dates, func(ctx context.Context) error {
		return click(ctx, a.prof.DateControl)
	})
}

// SearchURL builds the fully-parameterized availability URL from the
// tab's current restaurant page. An unexpected path shape is an error,
// never a malformed URL.
func SearchURL(current *url.URL, p prefs.Preferences) (string, error) {
	if current == nil || current.Host == "" {
		return "", fmt.Errorf("no usable tab URL")
	}
	segs := strings.Split(strings.Trim(current.Path, "/"), "/")
	if len(segs) < 2 || (segs[0] != "r" && segs[0] != "restaurant") {
		return "", fmt.Errorf("unexpected restaurant path %q", current.Path)
	}
	q := url.Values{}
	q.Set("date", p.PrimaryDate)
	q.Set("covers", strconv.Itoa(p.PartySize))
	q.Set("time", p.PrimaryTime)

	u := *current
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}
