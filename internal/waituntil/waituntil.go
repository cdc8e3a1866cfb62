// Package waituntil is the single bounded-wait primitive used wherever
// the automation has to wait for the page to catch up: a predicate is
// polled on a fixed interval under a hard deadline, with an optional
// trigger channel (e.g. a DOM mutation event) forcing an immediate
// re-check. Whichever fires first wins, and the wait resolves exactly
// once.
package waituntil

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout reports that the deadline elapsed before the predicate
// held.
var ErrTimeout = errors.New("waituntil: condition not met before deadline")

type Options struct {
	Interval time.Duration
	Timeout  time.Duration

	// Trigger, when non-nil, forces an immediate predicate re-check on
	// every receive. It supplements polling, it does not replace it.
	Trigger <-chan struct{}
}

const (
	DefaultInterval = 250 * time.Millisecond
	DefaultTimeout  = 5 * time.Second
)

// Until polls pred until it returns true, the timeout elapses, or ctx
// is cancelled. Predicate errors are treated as "not yet" (the target
// may simply not be rendered) and only surface if the deadline is hit,
// attached to ErrTimeout.
func Until(ctx context.Context, opts Options, pred func(context.Context) (bool, error)) error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var lastErr error
	check := func() (bool, error) {
		ok, err := pred(ctx)
		if err != nil {
			lastErr = err
			return false, nil
		}
		return ok, nil
	}

	if ok, _ := check(); ok {
		return nil
	}

	t := time.NewTicker(opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				if lastErr != nil {
					return errors.Join(ErrTimeout, lastErr)
				}
				return ErrTimeout
			}
			return ctx.Err()
		case <-t.C:
			if ok, _ := check(); ok {
				return nil
			}
		case _, open := <-opts.Trigger:
			if !open {
				opts.Trigger = nil
				continue
			}
			if ok, _ := check(); ok {
				return nil
			}
		}
	}
}
