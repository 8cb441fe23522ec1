// Package metrics provides Prometheus metrics for the card resolver.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Search Cascade Metrics
	SearchStrategyRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_search_strategy_runs_total",
			Help: "Search strategies executed, by outcome",
		},
		[]string{"strategy", "result"}, // result: "hit", "empty", "error"
	)

	SearchCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_search_candidates",
			Help:    "Deduplicated candidates gathered per resolution",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	// Resolution Metrics
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_resolutions_total",
			Help: "Card resolutions by final status",
		},
		[]string{"status"}, // "matched", "no_name", "no_results", "below_threshold"
	)

	ResolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_resolution_duration_seconds",
			Help:    "Time taken to search, score and select a card",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	TopMatchScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_top_match_score",
			Help:    "Score of the best-ranked candidate per resolution",
			Buckets: []float64{-2000, 0, 500, 750, 1500, 3000, 5000, 8000, 11000},
		},
	)

	// Pokemon TCG API Metrics
	TCGAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_pokemon_api_requests_total",
			Help: "Pokemon TCG API requests by endpoint",
		},
		[]string{"endpoint"}, // "search", "card"
	)

	TCGAPILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_pokemon_api_latency_seconds",
			Help:    "Pokemon TCG API call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	TCGAPIErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_pokemon_api_errors_total",
			Help: "Pokemon TCG API errors by type",
		},
		[]string{"type"}, // "network", "rate_limited", "status", "parse"
	)

	TCGCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_pokemon_api_cache_hits_total",
			Help: "Search cache hit count",
		},
	)

	TCGCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_pokemon_api_cache_misses_total",
			Help: "Search cache miss count",
		},
	)

	// Card Database Metrics
	CardDatabaseSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_card_database_size",
			Help: "Number of cards loaded into the local card index",
		},
	)

	// Gemini Extraction Metrics
	GeminiRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_gemini_requests_total",
			Help: "Total Gemini API extraction requests",
		},
	)

	GeminiAPILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_gemini_api_latency_seconds",
			Help:    "Gemini API call latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20},
		},
	)

	GeminiErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_gemini_errors_total",
			Help: "Gemini API errors by type",
		},
		[]string{"type"}, // "network", "read", "api", "parse", "empty"
	)

	GeminiCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_gemini_cache_hits_total",
			Help: "Extractions served from the image hash cache",
		},
	)

	// Scan History Metrics
	ScansRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_scans_recorded_total",
			Help: "Scan records persisted by source",
		},
		[]string{"source"}, // "resolve", "scan", "cli"
	)

	// Card Refresh Worker Metrics
	CardRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_card_refresh_total",
			Help: "Cached card refreshes by outcome",
		},
		[]string{"result"}, // "refreshed", "missing", "error"
	)
)
