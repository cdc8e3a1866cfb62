package site

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProfile = Profile{
	DayCells:        ".DayPicker-Day",
	DayDateAttr:     "aria-label",
	DayDisabledAttr: "aria-disabled",
}

const calendarHTML = `
<div class="DayPicker">
  <div class="DayPicker-Day" aria-label="2026-09-16">16</div>
  <div class="DayPicker-Day" aria-label="2026-09-17">17</div>
  <div class="DayPicker-Day" aria-label="2026-09-18" aria-disabled="true">18</div>
  <div class="DayPicker-Day" aria-label="2026-09-19" aria-disabled="false">19</div>
  <div class="DayPicker-Day" aria-label="2026-09-20" disabled>20</div>
  <div class="DayPicker-Day">filler</div>
</div>`

func TestParseAvailability(t *testing.T) {
	avail, err := parseAvailability(calendarHTML, testProfile)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		"2026-09-16": true,
		"2026-09-17": true,
		"2026-09-19": true,
	}, avail, "disabled cells and cells without a date are excluded")
}

func TestParseAvailabilityHumanReadableLabels(t *testing.T) {
	html := `
<div>
  <button class="DayPicker-Day" aria-label="Thursday, September 17, 2026">17</button>
  <button class="DayPicker-Day" aria-label="September 18, 2026">18</button>
</div>`
	avail, err := parseAvailability(html, testProfile)
	require.NoError(t, err)
	assert.True(t, avail["2026-09-17"])
	assert.True(t, avail["2026-09-18"])
}

func TestParseAvailabilityEmptyDocument(t *testing.T) {
	avail, err := parseAvailability("<html><body></body></html>", testProfile)
	require.NoError(t, err)
	assert.Empty(t, avail)
}

func TestDayCellIndex(t *testing.T) {
	idx, ok := dayCellIndex(calendarHTML, testProfile, "2026-09-17")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	// Disabled cells still occupy an index in the node list.
	idx, ok = dayCellIndex(calendarHTML, testProfile, "2026-09-19")
	require.True(t, ok)
	assert.Equal(t, 3, idx)

	_, ok = dayCellIndex(calendarHTML, testProfile, "2026-10-01")
	assert.False(t, ok)
}

func TestParseDayLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2026-09-17", "2026-09-17", true},
		{"September 17, 2026", "2026-09-17", true},
		{"Thursday, September 17, 2026", "2026-09-17", true},
		{"Thu Sep 17 2026", "2026-09-17", true},
		{"  2026-09-17. ", "2026-09-17", true},
		{"tomorrow", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := parseDayLabel(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
