package site

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/example/table-sniper/internal/browser"
	"github.com/example/table-sniper/internal/prefs"
)

// Driver is the production timer.Runner: it resolves a tab to its
// platform adapter and executes browser work against it.
type Driver struct {
	bridge   *browser.Bridge
	profiles Profiles
	log      *slog.Logger
}

func NewDriver(b *browser.Bridge, profiles Profiles, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{bridge: b, profiles: profiles, log: log}
}

func (d *Driver) Platform(ctx context.Context, tabID string) (string, error) {
	rawURL, err := d.bridge.TabURL(ctx, tabID)
	if err != nil {
		return "", err
	}
	pl, ok := Detect(rawURL)
	if !ok {
		return "", fmt.Errorf("unsupported site %q", rawURL)
	}
	return string(pl), nil
}

func (d *Driver) adapter(ctx context.Context, tabID string) (Adapter, context.Context, error) {
	rawURL, err := d.bridge.TabURL(ctx, tabID)
	if err != nil {
		return nil, nil, err
	}
	pl, ok := Detect(rawURL)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported site %q", rawURL)
	}
	tab, err := d.bridge.Tab(tabID)
	if err != nil {
		return nil, nil, err
	}
	prof := d.profiles.For(pl)
	switch pl {
	case PlatformOpenTable:
		return NewOpenTable(prof, d.log), tab, nil
	case PlatformResy:
		return NewResy(prof, d.log), tab, nil
	case PlatformTock:
		return NewTock(prof, d.log), tab, nil
	}
	return nil, nil, fmt.Errorf("no adapter for platform %q", pl)
}

// Prepare eagerly navigates OpenTable tabs to the parameterized search
// URL at schedule time, so the fire-time reload is a same-URL refresh
// instead of a fresh navigation. Other platforms need nothing.
func (d *Driver) Prepare(ctx context.Context, tabID string, p prefs.Preferences) error {
	rawURL, err := d.bridge.TabURL(ctx, tabID)
	if err != nil {
		return err
	}
	pl, ok := Detect(rawURL)
	if !ok || pl != PlatformOpenTable {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	target, err := SearchURL(u, p)
	if err != nil {
		return err
	}
	d.log.Info("pre-navigating to search url", "tab", tabID, "url", target)
	return d.bridge.Navigate(ctx, tabID, target)
}

func (d *Driver) Reload(ctx context.Context, tabID string) error {
	return d.bridge.Reload(ctx, tabID)
}

func (d *Driver) RunScheduled(ctx context.Context, tabID string, p prefs.Preferences, dates []string) (bool, error) {
	a, tab, err := d.adapter(ctx, tabID)
	if err != nil {
		return false, err
	}
	return a.TryCandidateDates(tab, p, dates)
}

func (d *Driver) RunImmediate(ctx context.Context, tabID string, p prefs.Preferences) (bool, error) {
	a, tab, err := d.adapter(ctx, tabID)
	if err != nil {
		return false, err
	}
	return a.FillAndSubmit(tab, p)
}
