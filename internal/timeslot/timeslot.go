// Package timeslot implements the slot time-matching policy shared by
// every site adapter: slot labels are parsed into minutes since
// midnight, an exact match wins, otherwise the closest slot is chosen
// with ties broken by first-encountered order.
package timeslot

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock parses an internal 24-hour "HH:MM" time into minutes since
// midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("time %q has invalid hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q has invalid minute", s)
	}
	return h*60 + m, nil
}

// ParseLabel parses a displayed 12-hour slot label like "5:30 PM" or
// "11:00am" into minutes since midnight. Sites render labels with
// varying spacing and case, so both are normalized away.
func ParseLabel(s string) (int, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	t = strings.ReplaceAll(t, ".", "")

	var mer string
	switch {
	case strings.HasSuffix(t, "AM"):
		mer, t = "AM", strings.TrimSpace(strings.TrimSuffix(t, "AM"))
	case strings.HasSuffix(t, "PM"):
		mer, t = "PM", strings.TrimSpace(strings.TrimSuffix(t, "PM"))
	default:
		return 0, fmt.Errorf("slot label %q missing AM/PM", s)
	}

	hh, mm, ok := strings.Cut(t, ":")
	if !ok {
		hh, mm = t, "00"
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 1 || h > 12 {
		return 0, fmt.Errorf("slot label %q has invalid hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("slot label %q has invalid minute", s)
	}
	if h == 12 {
		h = 0
	}
	if mer == "PM" {
		h += 12
	}
	return h*60 + m, nil
}

// FormatLabel renders minutes since midnight as the 12-hour form sites
// display, e.g. 1050 -> "5:30 PM".
func FormatLabel(min int) string {
	h, m := min/60, min%60
	mer := "AM"
	if h >= 12 {
		mer = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, mer)
}

// Nearest picks the slot label closest to target (minutes since
// midnight). Exact equality wins; otherwise minimum absolute
// difference, ties going to the first-encountered label. Unparsable
// labels are skipped. Returns ok=false when nothing parses.
func Nearest(target int, labels []string) (int, bool) {
	best, bestDiff := -1, 0
	for i, l := range labels {
		min, err := ParseLabel(l)
		if err != nil {
			continue
		}
		if min == target {
			return i, true
		}
		diff := min - target
		if diff < 0 {
			diff = -diff
		}
		if best == -1 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best, best != -1
}
