package timeslot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"17:45", 1065, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"noon", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseLabel(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"5:30 PM", 1050, true},
		{"5:30PM", 1050, true},
		{"5:30 pm", 1050, true},
		{"11am", 660, true},
		{"12:00 AM", 0, true},
		{"12:15 PM", 735, true},
		{"12:00 P.M.", 720, true},
		{"17:30", 0, false},
		{"13:00 PM", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseLabel(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestFormatLabel(t *testing.T) {
	assert.Equal(t, "5:30 PM", FormatLabel(1050))
	assert.Equal(t, "12:00 AM", FormatLabel(0))
	assert.Equal(t, "12:05 PM", FormatLabel(725))
	assert.Equal(t, "11:59 PM", FormatLabel(1439))
}

func TestNearestExactWins(t *testing.T) {
	target, err := ParseClock("17:30")
	require.NoError(t, err)
	idx, ok := Nearest(target, []string{"5:00 PM", "5:30 PM", "6:00 PM"})
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestNearestTieGoesToFirstEncountered(t *testing.T) {
	// 17:45 is 15 minutes from both 5:30 PM and 6:00 PM; the earlier
	// label in the list wins.
	target, err := ParseClock("17:45")
	require.NoError(t, err)
	idx, ok := Nearest(target, []string{"5:00 PM", "5:30 PM", "6:00 PM"})
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestNearestSkipsUnparsableLabels(t *testing.T) {
	target, _ := ParseClock("18:00")
	idx, ok := Nearest(target, []string{"Sold out", "5:45 PM", "???"})
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestNearestNothingParses(t *testing.T) {
	_, ok := Nearest(1050, []string{"Sold out", "Notify me"})
	assert.False(t, ok)

	_, ok = Nearest(1050, nil)
	assert.False(t, ok)
}
