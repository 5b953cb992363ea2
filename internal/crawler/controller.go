package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/trydiscs/inventory-crawler/internal/associate"
	"github.com/trydiscs/inventory-crawler/internal/harvest"
	"github.com/trydiscs/inventory-crawler/internal/metrics"
	"github.com/trydiscs/inventory-crawler/internal/models"
	"github.com/trydiscs/inventory-crawler/internal/oracle"
	"github.com/trydiscs/inventory-crawler/internal/validate"
)

// State of the iteration machine.
type State int

const (
	StateInit State = iota
	StateScrollProbe
	StateScrollActive
	StatePaginationProbe
	StatePaginationActive
	StateDone
	StateFailed
)

// terminatingSentinel is what the oracle answers when no next-page element
// exists.
const terminatingSentinel = "End of inventory"

// Config tunes the iteration loops.
type Config struct {
	// MinNewListings is how many genuinely new listing hrefs a scroll round
	// must surface to keep probing. Both 0 and higher values are legitimate
	// operating points; 0 relies on MaxCycles to terminate.
	MinNewListings int
	// MaxCycles caps scroll rounds and pagination cycles.
	MaxCycles int
}

// Controller orchestrates repeated harvest, associate, and validate cycles
// across scroll and pagination steps until inventory discovery converges.
// One controller runs one manufacturer pass; the session it shares with
// sibling passes carries the dedup state and the pagination strategy.
type Controller struct {
	driver    PageDriver
	oracle    oracle.Oracle
	validator *validate.Validator
	session   *Session
	metrics   *metrics.Metrics
	cfg       Config
	state     State
	logger    *slog.Logger
}

func NewController(driver PageDriver, o oracle.Oracle, v *validate.Validator, session *Session, m *metrics.Metrics, cfg Config) *Controller {
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = 50
	}
	return &Controller{
		driver:    driver,
		oracle:    o,
		validator: v,
		session:   session,
		metrics:   m,
		cfg:       cfg,
		state:     StateInit,
		logger: slog.Default().With(
			"component", "iteration_controller",
			"session", session.ID,
		),
	}
}

// State returns the controller's current machine state.
func (c *Controller) State() State {
	return c.state
}

// SearchInventory finds the site's inventory search box via the oracle and
// submits the manufacturer name as the query.
func (c *Controller) SearchInventory(ctx context.Context, manufacturer string) error {
	inputs, err := c.driver.SearchInputs(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate inputs: %w", err)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no input elements on page")
	}

	prompt := "Return only the input element which is most likely to be a search input " +
		"for the website's inventory. Do not return any other text or information: " +
		strings.Join(inputs, " ")

	answer, err := c.oracle.Ask(ctx, prompt)
	if err != nil {
		c.metrics.IncOracle("failure")
		return fmt.Errorf("oracle could not pick a search input: %w", err)
	}
	c.metrics.IncOracle("success")

	// Exact candidate match first; otherwise fall back to an id/class
	// selector derived from whatever element the oracle produced.
	for _, candidate := range inputs {
		if candidate == answer {
			return c.driver.SubmitSearch(ctx, answer, manufacturer)
		}
	}

	selector := SelectorFromElement(answer)
	if selector == "" {
		return fmt.Errorf("oracle answer matched no input element")
	}
	return c.driver.SubmitSearchBySelector(ctx, selector, manufacturer)
}

// CollectInventory runs the discovery state machine for one manufacturer on
// the current page and returns the records newly added to the session during
// this pass. A returned error means the pass failed (oracle exhaustion or
// cancellation); accumulated records are still returned.
func (c *Controller) CollectInventory(ctx context.Context, manufacturer string) ([]models.InventoryRecord, error) {
	c.session.PageNumber = 1
	var collected []models.InventoryRecord

	c.state = StateScrollProbe
	infinite, err := c.scrollProbe(ctx, manufacturer, &collected)
	if err != nil {
		c.state = StateFailed
		return collected, err
	}

	if infinite {
		// The same content set is reachable either way; pagination is
		// skipped entirely.
		c.logger.Info("classified as infinite scroll, pagination not attempted",
			"manufacturer", manufacturer, "records", len(collected))
		c.state = StateDone
		return collected, nil
	}

	c.state = StatePaginationProbe
	if err := c.paginate(ctx, manufacturer, &collected); err != nil {
		c.state = StateFailed
		return collected, err
	}

	c.state = StateDone
	c.logger.Info("inventory collection converged",
		"manufacturer", manufacturer, "records", len(collected))
	return collected, nil
}

// scrollProbe harvests, scrolls, and re-harvests until a round stops
// producing enough new listing hrefs. It reports whether any round showed
// growth, which classifies the site as infinite-scroll.
func (c *Controller) scrollProbe(ctx context.Context, manufacturer string, out *[]models.InventoryRecord) (bool, error) {
	growthRounds := 0

	for round := 1; round <= c.cfg.MaxCycles; round++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		if err := c.driver.WaitStable(ctx); err != nil {
			c.logger.Warn("page never stabilized, ending scroll probe", "error", err)
			break
		}

		snap, err := c.driver.Harvest(ctx)
		if err != nil {
			return growthRounds > 0, err
		}
		if snap == nil {
			break
		}
		*out = append(*out, c.accumulate(snap, manufacturer)...)
		c.session.MarkSeen(snap)

		if err := c.driver.ScrollSweep(ctx); err != nil {
			c.logger.Warn("scroll failed, ending scroll probe", "error", err)
			break
		}
		if err := c.driver.WaitStable(ctx); err != nil {
			break
		}

		again, err := c.driver.Harvest(ctx)
		if err != nil {
			return growthRounds > 0, err
		}
		if again == nil {
			break
		}

		fresh := c.session.CountNewHrefs(again)
		c.logger.Debug("scroll round finished", "round", round, "new_hrefs", fresh)

		if fresh < c.cfg.MinNewListings {
			// The final sweep may still carry content the probe has not
			// accumulated yet.
			*out = append(*out, c.accumulate(again, manufacturer)...)
			c.session.MarkSeen(again)
			break
		}

		growthRounds++
		c.state = StateScrollActive
	}

	return growthRounds > 0, nil
}

// paginate advances pages with the cached query-param strategy when one is
// known, otherwise by asking the oracle to pick the next-page element. Every
// failure mode except oracle exhaustion ends the loop gracefully with
// whatever was accumulated.
func (c *Controller) paginate(ctx context.Context, manufacturer string, out *[]models.InventoryRecord) error {
	for cycle := 1; cycle <= c.cfg.MaxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.driver.WaitStable(ctx); err != nil {
			c.logger.Warn("page never stabilized, ending pagination", "error", err)
			return nil
		}

		snap, err := c.driver.Harvest(ctx)
		if err != nil {
			return err
		}
		if snap == nil {
			return nil
		}

		fresh := c.session.CountNewHrefs(snap)
		*out = append(*out, c.accumulate(snap, manufacturer)...)
		c.session.MarkSeen(snap)

		// The first cycle re-reads the page the scroll probe already saw;
		// only later cycles can end the loop on stale content.
		if cycle > 1 && fresh == 0 {
			c.logger.Info("no new listings, ending pagination", "page", c.session.PageNumber)
			return nil
		}

		c.state = StatePaginationActive

		if key, ok := c.session.Strategy.QueryParam(); ok {
			next, err := rewritePageParam(c.driver.URL(), key, c.session.PageNumber+1)
			if err != nil {
				c.logger.Warn("failed to build next page url", "error", err)
				return nil
			}
			if err := c.driver.Navigate(ctx, next); err != nil {
				c.logger.Warn("navigation failed, ending pagination", "error", err)
				return nil
			}
		} else {
			description, done, err := c.pickNextElement(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			if err := c.driver.ClickCandidate(ctx, description); err != nil {
				c.logger.Warn("error navigating to next page", "error", err)
				return nil
			}
			if key := detectPageParam(c.driver.URL(), c.session.PageNumber+1); key != "" {
				c.session.Strategy = QueryParamStrategy(key)
				c.logger.Info("discovered pagination query parameter", "param", key)
			} else if c.session.Strategy.Kind == StrategyUnknown {
				c.session.Strategy = PaginationStrategy{Kind: StrategyClickNext}
			}
		}

		c.session.PageNumber++
	}

	return nil
}

// pickNextElement asks the oracle to choose the next-page element among the
// filtered candidates. The answer is untrusted: anything that is not an
// exact candidate match is treated as end of inventory.
func (c *Controller) pickNextElement(ctx context.Context) (string, bool, error) {
	candidates, err := c.driver.NavigationCandidates(ctx)
	if err != nil {
		c.logger.Warn("failed to enumerate navigation candidates", "error", err)
		return "", true, nil
	}
	if len(candidates) == 0 {
		c.logger.Info("no navigation candidates on page")
		return "", true, nil
	}

	prompt := fmt.Sprintf(
		"Identify which element is most likely to be the navigation element to the "+
			"next page of inventory, given that we are on page %d currently, and return "+
			"the entire element. Do not return any other text or information, and do not "+
			"wrap the returned value in backticks. If there is no next page navigation "+
			"element return %q. %s",
		c.session.PageNumber, terminatingSentinel, strings.Join(candidates, " "))

	answer, err := c.oracle.Ask(ctx, prompt)
	if err != nil {
		c.metrics.IncOracle("failure")
		return "", false, fmt.Errorf("oracle could not pick next page element: %w", err)
	}
	c.metrics.IncOracle("success")

	if answer == terminatingSentinel {
		return "", true, nil
	}

	for _, candidate := range candidates {
		if candidate == answer {
			return answer, false, nil
		}
	}

	c.logger.Warn("oracle answer matched no navigation candidate")
	return "", true, nil
}

// accumulate validates and associates one snapshot and merges the resulting
// records into the session, returning the genuinely new ones. Price and
// image claims are page-scoped: each snapshot gets a fresh claim set.
func (c *Controller) accumulate(snap *harvest.PageSnapshot, manufacturer string) []models.InventoryRecord {
	c.metrics.IncPages()

	validated := c.validator.Validate(snap.Listings, manufacturer, snap.PageURL)
	c.metrics.AddValidated(len(validated))
	c.metrics.AddRejected(len(snap.Listings) - len(validated))
	if len(validated) == 0 {
		return nil
	}

	sort.SliceStable(validated, func(i, j int) bool {
		return validated[i].SourceOrder < validated[j].SourceOrder
	})

	records := associate.Associate(validated, snap.Prices, snap.Images, associate.NewClaims())
	added := c.session.Add(records)
	c.metrics.AddRecords(len(added))
	return added
}
