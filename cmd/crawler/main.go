package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/trydiscs/inventory-crawler/internal/api"
	"github.com/trydiscs/inventory-crawler/internal/browser"
	"github.com/trydiscs/inventory-crawler/internal/catalog"
	"github.com/trydiscs/inventory-crawler/internal/config"
	"github.com/trydiscs/inventory-crawler/internal/crawler"
	"github.com/trydiscs/inventory-crawler/internal/events"
	"github.com/trydiscs/inventory-crawler/internal/harvest"
	"github.com/trydiscs/inventory-crawler/internal/metrics"
	"github.com/trydiscs/inventory-crawler/internal/oracle"
	"github.com/trydiscs/inventory-crawler/internal/proxy"
	"github.com/trydiscs/inventory-crawler/internal/ratelimit"
	"github.com/trydiscs/inventory-crawler/internal/store"
	"github.com/trydiscs/inventory-crawler/internal/validate"
	"github.com/trydiscs/inventory-crawler/pkg/logger"
)

func main() {
	var (
		retailersFlag     = flag.String("retailers", "", "comma-separated retailer URLs to crawl")
		manufacturersFlag = flag.String("manufacturers", "", "comma-separated manufacturers to search for")
		headless          = flag.Bool("headless", true, "run the browser headless")
		dryRun            = flag.Bool("dry-run", false, "crawl without writing to the database or publishing events")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	retailers := splitList(*retailersFlag)
	if len(retailers) == 0 {
		retailers = cfg.Crawler.Retailers
	}
	manufacturers := splitList(*manufacturersFlag)
	if len(manufacturers) == 0 {
		manufacturers = cfg.Crawler.Manufacturers
	}

	cat, err := catalog.Load(cfg.Catalog.ModelsPath, cfg.Catalog.ManufacturersPath)
	if err != nil {
		log.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}
	if len(manufacturers) == 0 {
		manufacturers = cat.Manufacturers()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("shutting down...")
		cancel()
	}()

	browserOpts := &browser.Options{
		Headless:       *headless && cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		BlankImages:    cfg.Browser.BlankImages,
	}

	if cfg.Proxy.Token != "" {
		provisioner := proxy.NewProvisioner(cfg.Proxy.Token, cfg.Proxy.BaseURL)
		endpoint, err := provisioner.Acquire(ctx)
		if err != nil {
			log.Error("failed to acquire proxy", "error", err)
			os.Exit(1)
		}
		browserOpts.ProxyServer = endpoint.Server
		browserOpts.ProxyUsername = endpoint.Username
		browserOpts.ProxyPassword = endpoint.Password
		log.Info("crawling through proxy", "server", endpoint.Server)
	}

	geminiClient, err := oracle.NewGeminiClient(oracle.GeminiOptions{
		APIKey:      cfg.Oracle.APIKey,
		Model:       cfg.Oracle.Model,
		BaseURL:     cfg.Oracle.BaseURL,
		MaxAttempts: cfg.Oracle.MaxAttempts,
		RetryDelay:  cfg.Oracle.RetryDelay,
		Timeout:     cfg.Oracle.Timeout,
	})
	if err != nil {
		log.Error("failed to build oracle client", "error", err)
		os.Exit(1)
	}

	var recordStore crawler.RecordStore
	if !*dryRun {
		db, err := store.New(ctx, store.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		recordStore = db
	}

	var publisher crawler.EventPublisher
	if !*dryRun && cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		publisher = events.NewPublisher(redisClient, cfg.Redis.Stream, log)
	}

	m := metrics.New()
	waiter := browser.NewWaiter(browser.WaiterOptions{
		MaxAttempts:  cfg.Browser.StabilityRetries,
		IdleInterval: cfg.Browser.IdleInterval,
		IdleTimeout:  cfg.Browser.IdleTimeout,
		MinFulfilled: cfg.Browser.MinFulfilled,
	})
	harvester := harvest.New(cfg.Crawler.HarvestTimeout)

	// Each session owns its own browser so parallel retailer crawls stay
	// isolated down to the rendering process.
	newSessionDriver := func(ctx context.Context) (crawler.PageDriver, error) {
		b, err := browser.New(browserOpts)
		if err != nil {
			return nil, err
		}
		driver, err := crawler.NewDriver(b, waiter, harvester)
		if err != nil {
			b.Close()
			return nil, err
		}
		return &sessionDriver{PageDriver: driver, browser: b}, nil
	}

	batch, err := crawler.NewBatch(crawler.BatchOptions{
		Drivers:   newSessionDriver,
		Oracle:    geminiClient,
		Validator: validate.New(cat),
		Store:     recordStore,
		Publisher: publisher,
		Metrics:   m,
		Limiter:   ratelimit.NewSimpleRateLimiter(cfg.Crawler.RateLimitMin, cfg.Crawler.RateLimitMax),
		Workers:   cfg.Crawler.ConcurrentSessions,
		Controller: crawler.Config{
			MinNewListings: cfg.Crawler.MinNewListings,
			MaxCycles:      cfg.Crawler.MaxCycles,
		},
		StrategyCache: cfg.Crawler.StrategyCacheSize,
	})
	if err != nil {
		log.Error("failed to build batch", "error", err)
		os.Exit(1)
	}

	if cfg.Server.Addr != "" {
		handlers := api.NewHandlers(batch, log)
		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      handlers.Router(m.Registry),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			log.Info("status server starting", "addr", cfg.Server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("status server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("status server shutdown failed", "error", err)
			}
		}()
	}

	log.Info("starting batch crawl",
		"retailers", len(retailers),
		"manufacturers", len(manufacturers),
		"workers", cfg.Crawler.ConcurrentSessions,
		"dry_run", *dryRun,
	)

	if err := batch.Run(ctx, retailers, manufacturers); err != nil && err != context.Canceled {
		log.Error("batch crawl failed", "error", err)
		os.Exit(1)
	}

	for retailer, count := range batch.Results() {
		log.Info("crawl summary", "retailer", retailer, "records", count)
	}
	log.Info("batch crawl finished")
}

// sessionDriver ties a page driver to the browser instance backing it so
// closing the session tears both down.
type sessionDriver struct {
	crawler.PageDriver
	browser *browser.Browser
}

func (s *sessionDriver) Close() error {
	pageErr := s.PageDriver.Close()
	if err := s.browser.Close(); err != nil {
		return err
	}
	return pageErr
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
