package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Harvester walks the rendered DOM once and produces a PageSnapshot. The
// traversal runs inside the page via Evaluate; the Go side only races it
// against the time budget and decodes the result.
type Harvester struct {
	timeout time.Duration
	logger  *slog.Logger
}

func New(timeout time.Duration) *Harvester {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Harvester{
		timeout: timeout,
		logger:  slog.Default().With("component", "harvester"),
	}
}

// Snapshot harvests the current page. A timeout or in-page failure is a soft
// outcome: the returned snapshot is nil and the error is nil, so callers
// proceed with no data for this cycle.
func (h *Harvester) Snapshot(ctx context.Context, page playwright.Page) (*PageSnapshot, error) {
	type result struct {
		snapshot *PageSnapshot
		err      error
	}

	done := make(chan result, 1)
	go func() {
		raw, err := page.Evaluate(extractScript)
		if err != nil {
			done <- result{nil, err}
			return
		}
		snap, err := parseSnapshot(raw)
		done <- result{snap, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(h.timeout):
		h.logger.Warn("harvest timed out", "timeout", h.timeout)
		return nil, nil
	case res := <-done:
		if res.err != nil {
			h.logger.Warn("harvest failed", "error", res.err)
			return nil, nil
		}
		h.logger.Debug("harvested page",
			"url", res.snapshot.PageURL,
			"listings", len(res.snapshot.Listings),
			"prices", len(res.snapshot.Prices),
			"images", len(res.snapshot.Images),
		)
		return res.snapshot, nil
	}
}

// parseSnapshot decodes the JSON string the in-page script returns.
func parseSnapshot(raw interface{}) (*PageSnapshot, error) {
	encoded, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected harvest payload type %T", raw)
	}

	var snap PageSnapshot
	if err := json.Unmarshal([]byte(encoded), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode harvest payload: %w", err)
	}

	return &snap, nil
}

// extractScript runs once per harvest. It visits every element and collects
// listing anchors, direct-text-node prices (climbing ancestors when the
// currency marker and digits are split across elements), and image sources.
// Image src attributes can attach asynchronously, so each image element is
// polled with a per-element budget and a shared cross-element budget. All
// polling is iterative with accumulated elapsed time so the script always
// terminates.
const extractScript = `async () => {
	const maxTextLength = 250;
	const waitInterval = 100;
	const maxElementWait = 500;
	const maxTotalWait = 5000;
	let totalWait = 0;

	const listings = [];
	const prices = [];
	const images = [];

	const sleep = (ms) => new Promise((resolve) => setTimeout(resolve, ms));

	const clean = (text) => text
		.replace(/\r?\n|\r|\s+/g, ' ')
		.replace(/[^\w.\/\s–—−-]/g, '')
		.trim();

	const absolute = (src) => {
		try {
			const url = new URL(src, window.location.href);
			return url.href.startsWith('http') ? url.href : null;
		} catch (err) {
			return null;
		}
	};

	// Pick the median-width srcset entry rather than the largest or first.
	const srcsetMedian = (srcset) => {
		const sources = [];
		srcset.split(',').forEach((part) => {
			const [url, descriptor] = part.trim().split(' ');
			const width = parseInt(descriptor ? descriptor.replace('w', '') : '', 10);
			if (!url || !width) return;
			sources.push({ url, width });
		});
		if (!sources.length) return null;
		sources.sort((a, b) => a.width - b.width);
		return sources[Math.floor(sources.length / 2)].url;
	};

	const elements = Array.from(document.querySelectorAll('*'));

	for (const [index, element] of elements.entries()) {
		let rect = element.getBoundingClientRect();
		let position = {
			x: rect.left + rect.width / 2,
			y: rect.top + rect.height / 2 + window.scrollY,
		};

		const text = element.innerText ? clean(element.innerText) : '';

		let directText = '';
		for (const child of element.childNodes) {
			if (child.nodeType === Node.TEXT_NODE) directText = child.wholeText;
		}

		// The marker alone qualifies: the "$" and the digits are sometimes
		// split across sibling elements, so climb until a full token appears.
		if (directText.includes('$') && directText.length < maxTextLength) {
			const priceRegex = /\$[\d.]+/;
			let match = text.match(priceRegex);
			let curr = element;
			while (!match && curr.parentElement) {
				curr = curr.parentElement;
				match = (curr.innerText || '').match(priceRegex);
			}
			if (match) {
				const amount = parseFloat(match[0].replace(/[^\d.]/g, ''));
				const r = curr.getBoundingClientRect();
				if (!isNaN(amount)) {
					prices.push({
						position: {
							x: r.left + r.width / 2,
							y: r.top + r.height / 2 + window.scrollY,
						},
						amount,
					});
				}
			}
		}

		if (text && element.tagName === 'A') {
			listings.push({
				position,
				text,
				href: element.getAttribute('href') || '',
				sourceOrder: index,
			});
		}

		const imgLike = element.tagName === 'IMG'
			|| element.tagName === 'PICTURE'
			|| (element.tagName === 'INPUT'
				&& (element.hasAttribute('src') || element.hasAttribute('srcset')));

		if (imgLike) {
			const style = window.getComputedStyle(element);
			if ((style.display === 'none' || style.visibility === 'hidden') && element.parentElement) {
				rect = element.parentElement.getBoundingClientRect();
				position = {
					x: rect.left + rect.width / 2,
					y: rect.top + rect.height / 2 + window.scrollY,
				};
			}

			let url = null;
			let elapsed = 0;
			for (;;) {
				const source = element.querySelector ? element.querySelector('source') : null;
				const srcset = source
					? source.getAttribute('srcset')
					: element.getAttribute('srcset');
				if (srcset) {
					const median = srcsetMedian(srcset);
					if (median) {
						url = absolute(median);
						if (url) break;
					}
				}

				const src = element.getAttribute('src');
				if (src) {
					url = absolute(src);
					if (url) break;
				}

				if (elapsed >= maxElementWait || totalWait >= maxTotalWait) break;
				await sleep(waitInterval);
				elapsed += waitInterval;
				totalWait += waitInterval;
			}

			if (url) {
				images.push({
					position,
					url,
					topEdgeY: rect.top + window.scrollY,
				});
			}
		}
	}

	return JSON.stringify({ listings, prices, images, pageUrl: window.location.href });
}`
