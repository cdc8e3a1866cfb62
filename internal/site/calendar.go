package site

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/example/table-sniper/internal/prefs"
)

// Day-cell date attributes come in whatever shape the site renders;
// these are the layouts seen across the supported platforms.
var dayLabelLayouts = []string{
	prefs.DateLayout,
	"January 2, 2006",
	"Monday, January 2, 2006",
	"Mon Jan 02 2006",
}

// parseDayLabel canonicalizes a day-cell attribute value to YYYY-MM-DD.
func parseDayLabel(s string) (string, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "."))
	for _, layout := range dayLabelLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(prefs.DateLayout), true
		}
	}
	return "", false
}

// parseAvailability reads the calendar markup and returns the set of
// dates the site currently marks bookable. Recomputed per attempt
// cycle, never persisted.
func parseAvailability(html string, p Profile) (map[string]bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	avail := make(map[string]bool)
	doc.Find(p.DayCells).Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr(p.DayDateAttr)
		if !ok {
			return
		}
		date, ok := parseDayLabel(raw)
		if !ok {
			return
		}
		if disabledCell(s, p) {
			return
		}
		avail[date] = true
	})
	return avail, nil
}

func disabledCell(s *goquery.Selection, p Profile) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	if p.DayDisabledAttr != "" && p.DayDisabledAttr != "disabled" {
		if v, ok := s.Attr(p.DayDisabledAttr); ok && v != "false" {
			return true
		}
	}
	return false
}

// dayCellIndex finds the index of the cell for date among the day-cell
// node list, so it can be clicked in place without a page navigation.
func dayCellIndex(html string, p Profile, date string) (int, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, false
	}
	found, idx := false, 0
	doc.Find(p.DayCells).EachWithBreak(func(i int, s *goquery.Selection) bool {
		raw, ok := s.Attr(p.DayDateAttr)
		if !ok {
			return true
		}
		if d, ok := parseDayLabel(raw); ok && d == date {
			found, idx = true, i
			return false
		}
		return true
	})
	return idx, found
}
