package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Waiter blocks until a rendered page is network-idle and DOM-complete.
// Each settle attempt also sweeps the full page to flush lazy content, then
// re-checks idleness. The inner idle wait resolves on its own timeout so a
// chatty page degrades to partial state instead of hanging the caller.
type Waiter struct {
	maxAttempts  int
	idleInterval time.Duration
	idleTimeout  time.Duration
	minFulfilled int
	logger       *slog.Logger
}

type WaiterOptions struct {
	MaxAttempts  int
	IdleInterval time.Duration
	IdleTimeout  time.Duration
	// MinFulfilled is the number of finished requests the first idle check
	// requires before declaring the page settled. Post-scroll checks use
	// zero: a scroll that triggers nothing is already idle.
	MinFulfilled int
}

func NewWaiter(opts WaiterOptions) *Waiter {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = 750 * time.Millisecond
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 4 * time.Second
	}
	return &Waiter{
		maxAttempts:  opts.MaxAttempts,
		idleInterval: opts.IdleInterval,
		idleTimeout:  opts.IdleTimeout,
		minFulfilled: opts.MinFulfilled,
		logger:       slog.Default().With("component", "stability_waiter"),
	}
}

// WaitForStaticPage waits until the page stops mutating. Exhausting the
// retry budget returns an error that is fatal to the caller's current step
// only.
func (w *Waiter) WaitForStaticPage(ctx context.Context, page playwright.Page) error {
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		w.waitForNetworkIdle(ctx, page, w.minFulfilled)

		ready, err := page.Evaluate(`() => document.readyState === 'complete'`)
		if err != nil {
			w.logger.Debug("readyState check failed", "attempt", attempt, "error", err)
			continue
		}
		if complete, ok := ready.(bool); !ok || !complete {
			continue
		}

		if err := ScrollFullPage(page); err != nil {
			w.logger.Debug("scroll sweep failed", "attempt", attempt, "error", err)
			continue
		}

		// Wait out whatever lazy loading the sweep triggered.
		w.waitForNetworkIdle(ctx, page, 0)

		w.logger.Debug("page is static", "attempts", attempt)
		return nil
	}

	return fmt.Errorf("page never settled after %d attempts", w.maxAttempts)
}

// waitForNetworkIdle polls request counters at a fixed interval and returns
// once they stop changing (or a full-page load fires). The outer timeout
// resolves rather than fails: callers proceed with whatever state the page
// reached.
func (w *Waiter) waitForNetworkIdle(ctx context.Context, page playwright.Page, minFulfilled int) {
	var started, finished atomic.Int64
	var loaded atomic.Bool

	onRequest := func(playwright.Request) { started.Add(1) }
	onFinished := func(playwright.Request) { finished.Add(1) }
	onFailed := func(playwright.Request) { finished.Add(1) }
	onLoad := func(playwright.Page) { loaded.Store(true) }

	page.OnRequest(onRequest)
	page.OnRequestFinished(onFinished)
	page.OnRequestFailed(onFailed)
	page.OnLoad(onLoad)
	defer func() {
		page.RemoveListener("request", onRequest)
		page.RemoveListener("requestfinished", onFinished)
		page.RemoveListener("requestfailed", onFailed)
		page.RemoveListener("load", onLoad)
	}()

	deadline := time.After(w.idleTimeout)
	ticker := time.NewTicker(w.idleInterval)
	defer ticker.Stop()

	var prevStarted, prevFinished int64 = -1, -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			w.logger.Debug("timed out waiting for network idle")
			return
		case <-ticker.C:
			if loaded.Load() {
				return
			}
			s, f := started.Load(), finished.Load()
			if s == prevStarted && f == prevFinished && f >= s && f >= int64(minFulfilled) {
				return
			}
			prevStarted, prevFinished = s, f
		}
	}
}
