package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider reports per-retailer record counts for the running batch.
type StatsProvider interface {
	Results() map[string]int
}

// Handlers serves the crawler's status endpoints.
type Handlers struct {
	stats  StatsProvider
	logger *slog.Logger
}

func NewHandlers(stats StatsProvider, logger *slog.Logger) *Handlers {
	return &Handlers{
		stats:  stats,
		logger: logger,
	}
}

// Router builds the chi router with the standard middleware stack, the
// status endpoints, and a Prometheus scrape endpoint for the registry.
func (h *Handlers) Router(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.GetHealth)
	r.Get("/stats", h.GetStats)

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return r
}

func (h *Handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStats returns record counts per retailer for the batch so far.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	results := map[string]int{}
	if h.stats != nil {
		results = h.stats.Results()
	}

	total := 0
	for _, n := range results {
		total += n
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"retailers":     results,
		"total_records": total,
	})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
