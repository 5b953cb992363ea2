package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"github.com/trydiscs/inventory-crawler/internal/browser"
	"github.com/trydiscs/inventory-crawler/internal/harvest"
)

// PageDriver is the rendering/automation surface the controller drives. The
// playwright-backed implementation lives here; tests substitute stubs.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	WaitStable(ctx context.Context) error
	Harvest(ctx context.Context) (*harvest.PageSnapshot, error)
	ScrollSweep(ctx context.Context) error
	URL() string

	// NavigationCandidates returns normalized descriptions of clickable
	// elements that look like pagination controls.
	NavigationCandidates(ctx context.Context) ([]string, error)
	ClickCandidate(ctx context.Context, description string) error

	// SearchInputs returns normalized descriptions of the page's input
	// elements; SubmitSearch types a query into the described one.
	SearchInputs(ctx context.Context) ([]string, error)
	SubmitSearch(ctx context.Context, description, query string) error
	SubmitSearchBySelector(ctx context.Context, selector, query string) error

	Close() error
}

type playwrightDriver struct {
	browser   *browser.Browser
	page      playwright.Page
	waiter    *browser.Waiter
	harvester *harvest.Harvester
	logger    *slog.Logger

	navLocators   map[string]playwright.Locator
	inputLocators map[string]playwright.Locator
}

// NewDriver opens a fresh page on the browser and wires the waiter and
// harvester to it. One driver serves one crawl session.
func NewDriver(b *browser.Browser, waiter *browser.Waiter, harvester *harvest.Harvester) (PageDriver, error) {
	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open session page: %w", err)
	}

	return &playwrightDriver{
		browser:   b,
		page:      page,
		waiter:    waiter,
		harvester: harvester,
		logger:    slog.Default().With("component", "page_driver"),
	}, nil
}

func (d *playwrightDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.browser.NavigateWithRetry(d.page, url, 3)
}

func (d *playwrightDriver) WaitStable(ctx context.Context) error {
	return d.waiter.WaitForStaticPage(ctx, d.page)
}

func (d *playwrightDriver) Harvest(ctx context.Context) (*harvest.PageSnapshot, error) {
	return d.harvester.Snapshot(ctx, d.page)
}

func (d *playwrightDriver) ScrollSweep(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return browser.ScrollFullPage(d.page)
}

func (d *playwrightDriver) URL() string {
	return d.page.URL()
}

func (d *playwrightDriver) NavigationCandidates(ctx context.Context) ([]string, error) {
	descriptions, locators, err := d.describeElements(ctx, "button, a", isNavCandidate)
	if err != nil {
		return nil, err
	}
	d.navLocators = locators
	d.logger.Debug("collected navigation candidates", "count", len(descriptions))
	return descriptions, nil
}

func (d *playwrightDriver) ClickCandidate(ctx context.Context, description string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	locator, ok := d.navLocators[description]
	if !ok {
		return fmt.Errorf("unknown navigation candidate")
	}

	if err := browser.ScrollIntoView(d.page, locator); err != nil {
		return err
	}

	// A JS click bypasses overlay interception checks that a trusted click
	// would fail on.
	if _, err := locator.Evaluate(`(el) => el.click()`, nil); err != nil {
		return fmt.Errorf("failed to click navigation element: %w", err)
	}
	return nil
}

func (d *playwrightDriver) SearchInputs(ctx context.Context) ([]string, error) {
	descriptions, locators, err := d.describeElements(ctx, "input", nil)
	if err != nil {
		return nil, err
	}
	d.inputLocators = locators
	d.logger.Debug("collected search inputs", "count", len(descriptions))
	return descriptions, nil
}

func (d *playwrightDriver) SubmitSearch(ctx context.Context, description, query string) error {
	locator, ok := d.inputLocators[description]
	if !ok {
		return fmt.Errorf("unknown search input")
	}
	return d.typeAndSubmit(ctx, locator, query)
}

func (d *playwrightDriver) SubmitSearchBySelector(ctx context.Context, selector, query string) error {
	locator := d.page.Locator(selector).First()
	count, err := locator.Count()
	if err != nil || count == 0 {
		return fmt.Errorf("no element matches selector %q", selector)
	}
	return d.typeAndSubmit(ctx, locator, query)
}

func (d *playwrightDriver) typeAndSubmit(ctx context.Context, locator playwright.Locator, query string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := browser.ScrollIntoView(d.page, locator); err != nil {
		return err
	}

	// Some themes keep the field disabled or hidden until a widget opens.
	if _, err := locator.Evaluate(`(el) => {
		el.removeAttribute('disabled');
		el.style.visibility = 'visible';
	}`, nil); err != nil {
		return fmt.Errorf("failed to prepare search input: %w", err)
	}

	if err := locator.Fill(""); err != nil {
		return fmt.Errorf("failed to clear search input: %w", err)
	}
	if err := locator.PressSequentially(query, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(100),
	}); err != nil {
		return fmt.Errorf("failed to type query: %w", err)
	}
	if err := locator.Press("Enter"); err != nil {
		return fmt.Errorf("failed to submit query: %w", err)
	}
	return nil
}

func (d *playwrightDriver) Close() error {
	return d.page.Close()
}

// describeElements serializes every element matching the selector into a
// normalized one-line HTML description, keeping a description-to-locator
// map so oracle answers can be resolved back to live elements.
func (d *playwrightDriver) describeElements(ctx context.Context, selector string, keep func(string) bool) ([]string, map[string]playwright.Locator, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	locators, err := d.page.Locator(selector).All()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query %q elements: %w", selector, err)
	}

	descriptions := make([]string, 0, len(locators))
	byDescription := make(map[string]playwright.Locator, len(locators))

	for _, locator := range locators {
		raw, err := locator.Evaluate(`(el) => el.outerHTML`, nil)
		if err != nil {
			continue
		}
		outer, ok := raw.(string)
		if !ok {
			continue
		}
		description := normalizeElementHTML(outer)
		if description == "" {
			continue
		}
		if keep != nil && !keep(description) {
			continue
		}
		if _, seen := byDescription[description]; seen {
			continue
		}
		descriptions = append(descriptions, description)
		byDescription[description] = locator
	}

	return descriptions, byDescription, nil
}

var elementWhitespace = regexp.MustCompile(`\s+`)

func normalizeElementHTML(outer string) string {
	outer = strings.ReplaceAll(outer, "\r", " ")
	outer = strings.ReplaceAll(outer, "\n", " ")
	return strings.TrimSpace(elementWhitespace.ReplaceAllString(outer, " "))
}

// SelectorFromElement derives an id or class CSS selector from a serialized
// element. Used when the oracle returns an element that is not byte-equal to
// any candidate description.
func SelectorFromElement(elementHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(elementHTML))
	if err != nil {
		return ""
	}

	sel := doc.Find("input, button, a, select, textarea").First()
	if sel.Length() == 0 {
		return ""
	}

	if id, ok := sel.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if class, ok := sel.Attr("class"); ok && strings.TrimSpace(class) != "" {
		return "." + strings.Join(strings.Fields(class), ".")
	}
	return ""
}
