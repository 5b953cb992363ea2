package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/trydiscs/inventory-crawler/internal/events"
	"github.com/trydiscs/inventory-crawler/internal/metrics"
	"github.com/trydiscs/inventory-crawler/internal/models"
	"github.com/trydiscs/inventory-crawler/internal/oracle"
	"github.com/trydiscs/inventory-crawler/internal/queue"
	"github.com/trydiscs/inventory-crawler/internal/ratelimit"
	"github.com/trydiscs/inventory-crawler/internal/validate"
)

// RecordStore persists a retailer's inventory records.
type RecordStore interface {
	DeleteRecords(ctx context.Context, retailerKey string) error
	InsertRecords(ctx context.Context, records []models.InventoryRecord) error
}

// EventPublisher announces finished retailer crawls.
type EventPublisher interface {
	PublishInventoryDiscovered(ctx context.Context, payload *events.InventoryDiscoveredPayload) error
}

// DriverFactory opens a fresh page driver for one retailer session.
type DriverFactory func(ctx context.Context) (PageDriver, error)

// BatchOptions wires the batch runner's collaborators. Store and Publisher
// are optional; a nil store keeps records in memory only (dry runs).
type BatchOptions struct {
	Drivers       DriverFactory
	Oracle        oracle.Oracle
	Validator     *validate.Validator
	Store         RecordStore
	Publisher     EventPublisher
	Metrics       *metrics.Metrics
	Limiter       ratelimit.RateLimiter
	Workers       int
	Controller    Config
	StrategyCache int
}

// Batch crawls a set of retailers for a set of manufacturers with a bounded
// worker pool. Pagination strategies discovered for a retailer hostname are
// cached across sessions so repeat crawls skip the oracle.
type Batch struct {
	opts       BatchOptions
	strategies *lru.Cache[string, string]
	logger     *slog.Logger

	mu      sync.Mutex
	results map[string]int
}

func NewBatch(opts BatchOptions) (*Batch, error) {
	if opts.Drivers == nil {
		return nil, fmt.Errorf("driver factory is required")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.StrategyCache < 1 {
		opts.StrategyCache = 128
	}

	strategies, err := lru.New[string, string](opts.StrategyCache)
	if err != nil {
		return nil, fmt.Errorf("failed to build strategy cache: %w", err)
	}

	return &Batch{
		opts:       opts,
		strategies: strategies,
		logger:     slog.Default().With("component", "batch"),
		results:    make(map[string]int),
	}, nil
}

// Results returns the record count collected per retailer so far.
func (b *Batch) Results() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.results))
	for k, v := range b.results {
		out[k] = v
	}
	return out
}

// Run crawls every retailer for every manufacturer and blocks until all
// workers drain the queue. Per-retailer failures are logged and counted, not
// fatal to the batch.
func (b *Batch) Run(ctx context.Context, retailers, manufacturers []string) error {
	if len(retailers) == 0 {
		return fmt.Errorf("no retailers to crawl")
	}
	if len(manufacturers) == 0 {
		return fmt.Errorf("no manufacturers to crawl")
	}

	tasks := queue.NewInMemoryQueue()
	for _, retailer := range retailers {
		if err := tasks.Push(queue.NewTask(retailer)); err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", retailer, err)
		}
	}
	tasks.Close()

	var wg sync.WaitGroup
	for i := 0; i < b.opts.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			b.worker(ctx, worker, tasks, manufacturers)
		}(i)
	}
	wg.Wait()

	return ctx.Err()
}

func (b *Batch) worker(ctx context.Context, id int, tasks *queue.InMemoryQueue, manufacturers []string) {
	for {
		task, err := tasks.Pop(ctx)
		if err != nil {
			return
		}

		if b.opts.Limiter != nil {
			if err := b.opts.Limiter.Wait(ctx); err != nil {
				return
			}
		}

		start := time.Now()
		count, err := b.crawlRetailer(ctx, task.RetailerURL, manufacturers)
		b.opts.Metrics.ObserveSession(time.Since(start))

		if err != nil {
			b.opts.Metrics.IncError("session")
			b.logger.Error("retailer crawl failed",
				"worker", id, "retailer", task.RetailerURL, "error", err)
			continue
		}

		b.mu.Lock()
		b.results[task.RetailerURL] = count
		b.mu.Unlock()
	}
}

// crawlRetailer runs one full retailer session: purge old records, crawl the
// inventory once per manufacturer, persist, publish. The session's seen sets
// and pagination strategy carry across manufacturer passes.
func (b *Batch) crawlRetailer(ctx context.Context, retailerURL string, manufacturers []string) (int, error) {
	host := retailerHost(retailerURL)

	if b.opts.Store != nil {
		if err := b.opts.Store.DeleteRecords(ctx, host); err != nil {
			return 0, fmt.Errorf("failed to purge prior records: %w", err)
		}
	}

	driver, err := b.opts.Drivers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open session driver: %w", err)
	}
	defer driver.Close()

	session := NewSession(retailerURL)
	if cached, ok := b.strategies.Get(host); ok {
		session.Strategy = QueryParamStrategy(cached)
		b.logger.Info("reusing cached pagination strategy", "retailer", host, "param", cached)
	}

	failures := 0
	for _, manufacturer := range manufacturers {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if err := b.crawlManufacturer(ctx, driver, session, manufacturer); err != nil {
			failures++
			b.opts.Metrics.IncError("manufacturer_pass")
			b.logger.Warn("manufacturer pass failed",
				"retailer", host, "manufacturer", manufacturer, "error", err)
		}
	}

	if key, ok := session.Strategy.QueryParam(); ok {
		b.strategies.Add(host, key)
	}

	records := session.Records()
	if failures == len(manufacturers) && len(records) == 0 {
		return 0, fmt.Errorf("every manufacturer pass failed")
	}

	if b.opts.Store != nil {
		if err := b.opts.Store.InsertRecords(ctx, records); err != nil {
			return 0, fmt.Errorf("failed to store records: %w", err)
		}
	}

	if b.opts.Publisher != nil {
		payload := &events.InventoryDiscoveredPayload{
			SessionID:   session.ID,
			Retailer:    host,
			RecordCount: len(records),
		}
		if err := b.opts.Publisher.PublishInventoryDiscovered(ctx, payload); err != nil {
			b.opts.Metrics.IncError("publish")
			b.logger.Warn("failed to publish crawl event", "retailer", host, "error", err)
		}
	}

	b.logger.Info("retailer crawl finished",
		"retailer", host, "records", len(records), "failed_passes", failures)
	return len(records), nil
}

// crawlManufacturer navigates to the retailer, searches for the manufacturer,
// and runs the iteration controller over the results.
func (b *Batch) crawlManufacturer(ctx context.Context, driver PageDriver, session *Session, manufacturer string) error {
	if err := driver.Navigate(ctx, session.Retailer); err != nil {
		return fmt.Errorf("failed to open retailer page: %w", err)
	}
	if err := driver.WaitStable(ctx); err != nil {
		return fmt.Errorf("retailer page never stabilized: %w", err)
	}

	controller := NewController(driver, b.opts.Oracle, b.opts.Validator, session, b.opts.Metrics, b.opts.Controller)

	if err := controller.SearchInventory(ctx, manufacturer); err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	added, err := controller.CollectInventory(ctx, manufacturer)
	if err != nil {
		return fmt.Errorf("collection failed after %d records: %w", len(added), err)
	}
	return nil
}

func retailerHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
