package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	navigateTimeout = 10 * time.Second

	// reloadTimeout bounds how long one reload may take; a slow site
	// fails the cycle rather than hanging it.
	reloadTimeout = 5 * time.Second

	// settleDelay gives the page's own scripts a beat to initialize
	// after the load event before the adapter starts poking the DOM.
	settleDelay = 150 * time.Millisecond
)

// Reload refreshes the tab, waits for navigation to complete (bounded
// by reloadTimeout) and then for the settle delay. The single
// chromedp.Run resolves exactly once regardless of how many load
// events the page emits.
func (b *Bridge) Reload(ctx context.Context, targetID string) error {
	tab, err := b.Tab(targetID)
	if err != nil {
		return err
	}
	rctx, cancel := context.WithTimeout(tab, reloadTimeout)
	defer cancel()
	if err := chromedp.Run(rctx,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("reload tab %s: %w", targetID, err)
	}

	select {
	case <-time.After(settleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
