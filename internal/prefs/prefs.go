// Package prefs holds the user-supplied booking preferences and the
// candidate-date expansion derived from them.
package prefs

import (
	"fmt"
	"time"
)

// DateSelectionMode controls how candidate dates are derived from the
// primary date. Explicit dates and range scanning are mutually
// exclusive; a non-empty explicit set always wins.
type DateSelectionMode string

const (
	ModeSingle      DateSelectionMode = "single"
	ModeExplicitSet DateSelectionMode = "explicit-set"
	ModeRangeScan   DateSelectionMode = "range-scan"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	MinPartySize = 1
	MaxPartySize = 20

	// Fire-time offset is clamped to a small window around the drop.
	MaxSearchOffsetMs = 5000

	MaxRefreshAttemptsCap = 20
)

// Preferences is the full configuration for one booking intent. It is
// immutable for the duration of an attempt cycle.
type Preferences struct {
	PartySize   int    `json:"partySize"`
	PrimaryDate string `json:"primaryDate"` // YYYY-MM-DD
	PrimaryTime string `json:"primaryTime"` // HH:MM, 24-hour, site-local

	DateSelectionMode DateSelectionMode `json:"dateSelectionMode"`
	ExplicitDates     []string          `json:"explicitDates,omitempty"`
	ScanRadiusDays    int               `json:"scanRadiusDays,omitempty"`

	// DropTime is the wall-clock instant reservations open. Zero means
	// manual / immediate mode.
	DropTime       time.Time `json:"dropTime,omitempty"`
	SearchOffsetMs int       `json:"searchOffsetMs,omitempty"` // positive fires before the drop

	AutoRefreshOnEmpty bool `json:"autoRefreshOnEmpty,omitempty"`
	MaxRefreshAttempts int  `json:"maxRefreshAttempts,omitempty"`

	// Legacy whole-cycle retry knobs; platform-dependent whether used.
	MaxRetries           int `json:"maxRetries,omitempty"`
	RetryIntervalSeconds int `json:"retryIntervalSeconds,omitempty"`
}

// Defaults returns the preferences used when nothing has been stored:
// a party of two, today at noon, scheduling disabled.
func Defaults(now time.Time) Preferences {
	return Preferences{
		PartySize:         2,
		PrimaryDate:       now.Format(DateLayout),
		PrimaryTime:       "12:00",
		DateSelectionMode: ModeSingle,
	}
}

// Scheduled reports whether a drop time has been set.
func (p Preferences) Scheduled() bool { return !p.DropTime.IsZero() }

// FireTime is the instant the attempt cycle should start: the drop
// time shifted back by the search offset (a negative offset fires
// after the drop, to absorb backend processing lag).
func (p Preferences) FireTime() time.Time {
	return p.DropTime.Add(-time.Duration(p.SearchOffsetMs) * time.Millisecond)
}

func (p Preferences) Validate() error {
	if p.PartySize < MinPartySize || p.PartySize > MaxPartySize {
		return fmt.Errorf("party_size must be %d..%d (got %d)", MinPartySize, MaxPartySize, p.PartySize)
	}
	if _, err := time.Parse(DateLayout, p.PrimaryDate); err != nil {
		return fmt.Errorf("primary_date must be YYYY-MM-DD: %w", err)
	}
	if _, err := time.Parse(TimeLayout, p.PrimaryTime); err != nil {
		return fmt.Errorf("primary_time must be HH:MM: %w", err)
	}
	switch p.DateSelectionMode {
	case ModeSingle, ModeExplicitSet, ModeRangeScan, "":
	default:
		return fmt.Errorf("unknown date_selection_mode %q", p.DateSelectionMode)
	}
	for _, d := range p.ExplicitDates {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return fmt.Errorf("explicit date %q must be YYYY-MM-DD: %w", d, err)
		}
	}
	if p.ScanRadiusDays < 0 {
		return fmt.Errorf("scan_radius_days must be >= 0 (got %d)", p.ScanRadiusDays)
	}
	if p.SearchOffsetMs < -MaxSearchOffsetMs || p.SearchOffsetMs > MaxSearchOffsetMs {
		return fmt.Errorf("search_offset_ms must be within ±%d (got %d)", MaxSearchOffsetMs, p.SearchOffsetMs)
	}
	if p.AutoRefreshOnEmpty {
		if p.MaxRefreshAttempts < 1 || p.MaxRefreshAttempts > MaxRefreshAttemptsCap {
			return fmt.Errorf("max_refresh_attempts must be 1..%d when auto_refresh is on (got %d)", MaxRefreshAttemptsCap, p.MaxRefreshAttempts)
		}
	}
	if p.MaxRetries < 0 || p.RetryIntervalSeconds < 0 {
		return fmt.Errorf("retry settings must be >= 0")
	}
	return nil
}
