// Package browser owns the connection to the live Chrome instance and
// per-tab DevTools contexts. Everything the automation does to a page
// goes through a tab context obtained here.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// Bridge multiplexes one browser connection into per-tab chromedp
// contexts keyed by DevTools target ID.
type Bridge struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	mu   sync.Mutex
	tabs map[string]tabHandle
}

type tabHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// TabInfo is the tab listing surfaced to the operator.
type TabInfo struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Connect attaches to a running Chrome via its DevTools websocket URL,
// or launches a local (headful) instance when devtoolsURL is empty.
// Sniping runs against the operator's logged-in browser session, so
// headless is deliberately off for local launches.
func Connect(ctx context.Context, devtoolsURL string) (*Bridge, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if devtoolsURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, devtoolsURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", false),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	// Force the connection up front so a bad URL fails here, not at
	// fire time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	slog.Info("browser connected", "remote", devtoolsURL != "")

	return &Bridge{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		tabs:          make(map[string]tabHandle),
	}, nil
}

// Tab returns (creating if needed) the chromedp context attached to the
// given target.
func (b *Bridge) Tab(targetID string) (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h, ok := b.tabs[targetID]; ok {
		if h.ctx.Err() == nil {
			return h.ctx, nil
		}
		delete(b.tabs, targetID)
	}
	ctx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithTargetID(target.ID(targetID)))
	b.tabs[targetID] = tabHandle{ctx: ctx, cancel: cancel}
	return ctx, nil
}

// Tabs lists the page targets currently open in the browser.
func (b *Bridge) Tabs(ctx context.Context) ([]TabInfo, error) {
	infos, err := chromedp.Targets(b.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	out := make([]TabInfo, 0, len(infos))
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		out = append(out, TabInfo{
			ID:    string(info.TargetID),
			URL:   info.URL,
			Title: info.Title,
		})
	}
	return out, nil
}

// TabURL reports the current URL of the given tab.
func (b *Bridge) TabURL(ctx context.Context, targetID string) (string, error) {
	infos, err := chromedp.Targets(b.browserCtx)
	if err != nil {
		return "", fmt.Errorf("list targets: %w", err)
	}
	for _, info := range infos {
		if string(info.TargetID) == targetID {
			return info.URL, nil
		}
	}
	return "", fmt.Errorf("tab %s not found", targetID)
}

// Navigate drives the tab to url and waits for the document to be
// ready.
func (b *Bridge) Navigate(ctx context.Context, targetID, url string) error {
	tab, err := b.Tab(targetID)
	if err != nil {
		return err
	}
	nctx, cancel := context.WithTimeout(tab, navigateTimeout)
	defer cancel()
	if err := chromedp.Run(nctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate tab %s: %w", targetID, err)
	}
	return nil
}

func (b *Bridge) Close() {
	b.mu.Lock()
	for id, h := range b.tabs {
		h.cancel()
		delete(b.tabs, id)
	}
	b.mu.Unlock()
	b.browserCancel()
	b.allocCancel()
}
