package prefs

import "time"

// BuildCandidates expands preferences into the ordered list of dates an
// attempt cycle will try. The primary date is always first. A non-empty
// explicit set is appended in input order and suppresses range scanning
// entirely. Otherwise, in
// range-scan mode with radius R, offsets are generated ascending from
// -R to +R, skipping 0. The result never contains a date twice.
func BuildCandidates(p Preferences) []string {
	out := []string{p.PrimaryDate}
	seen := map[string]bool{p.PrimaryDate: true}

	if len(p.ExplicitDates) > 0 {
		for _, d := range p.ExplicitDates {
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
		return out
	}

	if p.DateSelectionMode != ModeRangeScan || p.ScanRadiusDays == 0 {
		return out
	}

	base, err := time.Parse(DateLayout, p.PrimaryDate)
	if err != nil {
		// Validate() catches this; an unparsable primary date degrades
		// to a single-date list rather than a panic mid-cycle.
		return out
	}
	for off := -p.ScanRadiusDays; off <= p.ScanRadiusDays; off++ {
		if off == 0 {
			continue
		}
		d := base.AddDate(0, 0, off).Format(DateLayout)
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
