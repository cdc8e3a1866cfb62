package site

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
)

//go:embed selectors.toml
var defaultSelectors string

// Profile is the selector set one adapter works with. Not every field
// is meaningful on every platform (OpenTable and Tock use a party-size
// select, Resy a +/- stepper).
type Profile struct {
	PartyControl   string `toml:"party_control"`
	PartyDecrement string `toml:"party_decrement"`
	PartyIncrement string `toml:"party_increment"`
	PartyValue     string `toml:"party_value"`

	DateControl  string `toml:"date_control"`
	TimeControl  string `toml:"time_control"`
	SearchButton string `toml:"search_button"`

	SlotButtons string `toml:"slot_buttons"`
	SlotLabel   string `toml:"slot_label"`

	CalendarRoot    string `toml:"calendar_root"`
	DayCells        string `toml:"day_cells"`
	DayDateAttr     string `toml:"day_date_attr"`
	DayDisabledAttr string `toml:"day_disabled_attr"`
}

type Profiles struct {
	OpenTable Profile `toml:"opentable"`
	Resy      Profile `toml:"resy"`
	Tock      Profile `toml:"tock"`
}

// DefaultProfiles decodes the embedded selector defaults.
func DefaultProfiles() (Profiles, error) {
	var p Profiles
	if err := toml.Unmarshal([]byte(defaultSelectors), &p); err != nil {
		return Profiles{}, fmt.Errorf("embedded selectors: %w", err)
	}
	return p, nil
}

// LoadProfiles layers an override file over the embedded defaults.
func LoadProfiles(path string) (Profiles, error) {
	p, err := DefaultProfiles()
	if err != nil {
		return Profiles{}, err
	}
	if path == "" {
		return p, nil
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Profiles{}, fmt.Errorf("selectors file %s: %w", path, err)
	}
	return p, nil
}

func (p Profiles) For(pl Platform) Profile {
	switch pl {
	case PlatformOpenTable:
		return p.OpenTable
	case PlatformResy:
		return p.Resy
	case PlatformTock:
		return p.Tock
	}
	return Profile{}
}
