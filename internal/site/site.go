// Package site contains the per-platform adapters that translate a
// booking intent into DOM operations against one specific site's
// markup. Adapters share the slot time-matching policy (timeslot), the
// bounded-wait primitive (waituntil) and the calendar availability
// parser; only the selectors and fill mechanics differ per site.
package site

import (
	"context"
	"net/url"
	"strings"

	"github.com/example/table-sniper/internal/prefs"
)

type Platform string

const (
	PlatformOpenTable Platform = "opentable"
	PlatformResy      Platform = "resy"
	PlatformTock      Platform = "tock"
)

// Adapter is the two-operation surface the scheduler drives. The
// context passed in must be a chromedp tab context. Adapters never let
// an error escape uncaught: any site-structure mismatch degrades to
// (false, diagnostic error), which the caller treats as "this attempt
// cycle did not secure a booking".
type Adapter interface {
	Platform() Platform

	// FillAndSubmit is the manual / immediate path: set party size,
	// date and time using the site's native controls, trigger the
	// availability search and activate the closest matching slot.
	FillAndSubmit(ctx context.Context, p prefs.Preferences) (bool, error)

	// TryCandidateDates is the scheduled path: parse the availability
	// calendar, intersect with the candidate dates, and for each date
	// present (in input order) select it in place and try to activate a
	// matching slot. Returns true on the first booked slot.
	TryCandidateDates(ctx context.Context, p prefs.Preferences, dates []string) (bool, error)
}

// Detect maps a tab URL to its booking platform.
func Detect(rawURL string) (Platform, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	switch {
	case host == "opentable.com" || strings.HasSuffix(host, ".opentable.com"):
		return PlatformOpenTable, true
	case host == "resy.com" || strings.HasSuffix(host, ".resy.com"):
		return PlatformResy, true
	case host == "exploretock.com" || strings.HasSuffix(host, ".exploretock.com"):
		return PlatformTock, true
	}
	return "", false
}
