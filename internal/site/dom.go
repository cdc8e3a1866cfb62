package site

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/example/table-sniper/internal/waituntil"
)

// Per-operation ceiling. chromedp actions block until their node query
// matches, so every call is wrapped in a short deadline; appearance
// waits go through waituntil instead.
const opTimeout = 2 * time.Second

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func run(ctx context.Context, actions ...chromedp.Action) error {
	octx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return chromedp.Run(octx, actions...)
}

func nodeCount(ctx context.Context, sel string) (int, error) {
	var n int
	expr := fmt.Sprintf("document.querySelectorAll(%s).length", jsString(sel))
	if err := run(ctx, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

// waitFor polls for at least one element matching sel, bounded.
func waitFor(ctx context.Context, sel string, timeout time.Duration) error {
	err := waituntil.Until(ctx, waituntil.Options{Timeout: timeout}, func(ctx context.Context) (bool, error) {
		n, err := nodeCount(ctx, sel)
		return n > 0, err
	})
	if err != nil {
		return fmt.Errorf("element %q: %w", sel, err)
	}
	return nil
}

func click(ctx context.Context, sel string) error {
	if err := run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", sel, err)
	}
	return nil
}

// scopedClickExpr builds the page expression that clicks the i-th
// element matching sel inside the element matching root. Scoping keeps
// the index aligned with a parse of the root's own markup even when
// sel matches nodes elsewhere on the page.
func scopedClickExpr(root, sel string, i int) string {
	return fmt.Sprintf(`(function() {
		var scope = document.querySelector(%s);
		if (!scope) return false;
		var els = scope.querySelectorAll(%s);
		if (%d >= els.length) return false;
		els[%d].click();
		return true;
	})()`, jsString(root), jsString(sel), i, i)
}

// clickNthWithin clicks the i-th element matching sel under the element
// matching root.
func clickNthWithin(ctx context.Context, root, sel string, i int) error {
	var ok bool
	if err := run(ctx, chromedp.Evaluate(scopedClickExpr(root, sel, i), &ok)); err != nil {
		return fmt.Errorf("click %q[%d] in %q: %w", sel, i, root, err)
	}
	if !ok {
		return fmt.Errorf("click %q[%d] in %q: no such element", sel, i, root)
	}
	return nil
}

// clickNth clicks the i-th element matching sel. Indexed clicking goes
// through the page's own querySelectorAll so the index always refers to
// the same node list the label scan saw.
func clickNth(ctx context.Context, sel string, i int) error {
	var ok bool
	expr := fmt.Sprintf(`(function() {
		var els = document.querySelectorAll(%s);
		if (%d >= els.length) return false;
		els[%d].click();
		return true;
	})()`, jsString(sel), i, i)
	if err := run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
		return fmt.Errorf("click %q[%d]: %w", sel, i, err)
	}
	if !ok {
		return fmt.Errorf("click %q[%d]: index out of range", sel, i)
	}
	return nil
}

func nodeTexts(ctx context.Context, sel string) ([]string, error) {
	var out []string
	expr := fmt.Sprintf(
		"Array.from(document.querySelectorAll(%s)).map(function(e){return e.textContent.trim()})",
		jsString(sel))
	if err := run(ctx, chromedp.Evaluate(expr, &out)); err != nil {
		return nil, fmt.Errorf("texts %q: %w", sel, err)
	}
	return out, nil
}

func outerHTML(ctx context.Context, sel string) (string, error) {
	var html string
	if err := run(ctx, chromedp.OuterHTML(sel, &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("outer html %q: %w", sel, err)
	}
	return html, nil
}

// setValue sets a form control's value and fires the change events
// frameworks listen for.
func setValue(ctx context.Context, sel, value string) error {
	if err := run(ctx, chromedp.SetValue(sel, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("set %q: %w", sel, err)
	}
	expr := fmt.Sprintf(`(function() {
		var el = document.querySelector(%s);
		if (!el) return false;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, jsString(sel))
	var ok bool
	if err := run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
		return fmt.Errorf("dispatch change %q: %w", sel, err)
	}
	return nil
}

func nodeText(ctx context.Context, sel string) (string, error) {
	var txt string
	if err := run(ctx, chromedp.Text(sel, &txt, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("text %q: %w", sel, err)
	}
	return txt, nil
}
