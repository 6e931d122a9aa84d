// Package main is the entry point for the Solana yield optimizer API, a
// service that ingests yield-farming opportunities from an upstream
// aggregator, scores their risk and derives portfolio allocations.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/solana-yield-optimizer/internal/analytics"
	"github.com/yourorg/solana-yield-optimizer/internal/cache"
	"github.com/yourorg/solana-yield-optimizer/internal/circuitbreaker"
	"github.com/yourorg/solana-yield-optimizer/internal/collect"
	"github.com/yourorg/solana-yield-optimizer/internal/config"
	"github.com/yourorg/solana-yield-optimizer/internal/fetch"
	"github.com/yourorg/solana-yield-optimizer/internal/model"
	"github.com/yourorg/solana-yield-optimizer/internal/otel"
	"github.com/yourorg/solana-yield-optimizer/internal/portfolio"
	"github.com/yourorg/solana-yield-optimizer/internal/risk"
	"github.com/yourorg/solana-yield-optimizer/internal/security"
	"github.com/yourorg/solana-yield-optimizer/internal/validation"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// datasetKey is the single logical cache key; the upstream source is
// fetched in full each time.
const datasetKey = "yields"

// Error codes surfaced in the structured error envelope
const (
	codeUpstreamUnavailable = "upstream_unavailable"
	codeValidationError     = "validation_error"
	codeRateLimited         = "rate_limited"
)

// Server holds the wired pipeline components behind the HTTP surface
type Server struct {
	config    config.Config
	collector *collect.Collector
	cache     *cache.Cache
	scorer    *risk.Scorer
	breaker   *circuitbreaker.CircuitBreaker
	integrity *security.IntegrityService
	rateLimit *rate.Limiter
	metrics   *serverMetrics
	server    *http.Server
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	datasetSize     prometheus.Gauge
	datasetTVL      prometheus.Gauge
	staleServes     prometheus.Counter
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldopt_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yieldopt_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		datasetSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "yieldopt_dataset_size",
				Help: "Number of opportunities in the current dataset",
			},
		),
		datasetTVL: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "yieldopt_dataset_tvl_usd",
				Help: "Total TVL of the current dataset in USD",
			},
		),
		staleServes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "yieldopt_stale_serves_total",
				Help: "Number of requests served from a stale cache entry",
			},
		),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.datasetSize,
		m.datasetTVL,
		m.staleServes,
	)

	return m
}

// main is the entry point for the application
func main() {
	setupLogging()

	cfg := config.Load()
	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	server := NewServer(cfg, fetch.NewDefiLlamaClient(cfg), registerMetrics())
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// NewServer wires the pipeline components together. metrics may be nil in
// tests to avoid double registration on the default registry.
func NewServer(cfg config.Config, client fetch.Client, metrics *serverMetrics) *Server {
	breaker := circuitbreaker.New(circuitbreaker.Thresholds{
		MaxAPY:       cfg.MaxAPY,
		MaxTVLChange: cfg.MaxTVLChange,
		MinRecords:   cfg.MinRecordCount,
	}).WithResetDelay(cfg.CircuitResetDelay)

	var integrity *security.IntegrityService
	if cfg.SigningEnabled {
		svc, err := security.NewIntegrityService()
		if err != nil {
			logrus.Warnf("Failed to initialize data integrity service: %v", err)
		} else {
			integrity = svc
		}
	}

	s := &Server{
		config:    cfg,
		collector: collect.New(client),
		cache:     cache.New(cfg.CacheTTL),
		scorer:    risk.NewScorer(),
		breaker:   breaker,
		integrity: integrity,
		rateLimit: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		metrics:   metrics,
	}

	logrus.WithFields(logrus.Fields{
		"port":      cfg.Port,
		"cache_ttl": cfg.CacheTTL,
		"chain":     cfg.Chain,
		"signing":   integrity != nil,
	}).Info("Server initialized")

	return s
}

// Routes returns the HTTP handler with all endpoints registered
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/yields", s.withMiddleware("yields", s.handleYields))
	mux.HandleFunc("/api/analytics", s.withMiddleware("analytics", s.handleAnalytics))
	mux.HandleFunc("/api/optimize", s.withMiddleware("optimize", s.handleOptimize))
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	return mux
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	logrus.Info("Server stopped")
}

// withMiddleware applies rate limiting and request metrics to a handler
func (s *Server) withMiddleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimit.Allow() {
			s.errorResponse(w, endpoint, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
			return
		}

		start := time.Now()
		next(w, r)
		if s.metrics != nil {
			s.metrics.requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

// dataset runs the collection stage behind the cache. The canonical
// (collected and outlier-filtered) shape is cached; scoring runs per
// request on top of it. The returned freshness distinguishes live data
// from stale and degraded serves.
func (s *Server) dataset(ctx context.Context) ([]model.Opportunity, cache.Freshness, error) {
	payload, freshness, err := s.cache.GetOrFetch(ctx, datasetKey, s.fetchDataset)
	if err != nil {
		return nil, cache.Fresh, err
	}

	if freshness == cache.Stale && s.metrics != nil {
		s.metrics.staleServes.Inc()
	}
	return payload, freshness, nil
}

// fetchDataset is the cache-miss path: fetch, normalize, drop outlier
// records, then sanity-check the surviving batch. Individual implausible
// records are the filter's job; the breaker only rejects whole datasets,
// so it must see the filtered batch. When it does reject one, the last
// known good dataset is substituted and flagged as degraded. The upstream
// fetch is the only blocking operation in the pipeline and is bounded by
// the configured timeout.
func (s *Server) fetchDataset(ctx context.Context) ([]model.Opportunity, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	ctx, span := otel.Tracer().Start(ctx, "fetch_dataset")
	defer span.End()

	logrus.Info("Fetching fresh yield data")
	opportunities, err := s.collector.Collect(ctx)
	if err != nil {
		otel.RecordError(ctx, err)
		return nil, false, err
	}

	opts := validation.DefaultOptions()
	opts.MaxAPY = s.config.MaxAPY
	filtered := validation.FilterOutliersWithOptions(opportunities, opts)

	if err := s.breaker.Check(filtered); err != nil {
		if lastGood := s.breaker.LastGood(); lastGood != nil {
			logrus.Warnf("Dataset rejected (%v), using last known good dataset", err)
			return lastGood, true, nil
		}
		otel.RecordError(ctx, err)
		return nil, false, err
	}

	if s.metrics != nil {
		var totalTVL float64
		for _, o := range filtered {
			totalTVL += o.TVL
		}
		s.metrics.datasetSize.Set(float64(len(filtered)))
		s.metrics.datasetTVL.Set(totalTVL)
	}
	return filtered, false, nil
}

// scoredDataset returns the canonical dataset with risk scores applied
func (s *Server) scoredDataset(ctx context.Context) ([]model.Opportunity, cache.Freshness, error) {
	collected, freshness, err := s.dataset(ctx)
	if err != nil {
		return nil, cache.Fresh, err
	}
	return s.scorer.ScoreAll(collected), freshness, nil
}

// yieldsQuery holds the parsed and validated /api/yields parameters
type yieldsQuery struct {
	minAPY     float64
	maxAPY     float64
	hasMaxAPY  bool
	minTVL     float64
	categories map[string]bool
	limit      int
}

// parseYieldsQuery validates query parameters before the pipeline runs
func parseYieldsQuery(r *http.Request) (yieldsQuery, string, bool) {
	q := yieldsQuery{limit: 100}
	values := r.URL.Query()

	if raw := values.Get("min_apy"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return q, "min_apy must be a non-negative decimal", false
		}
		q.minAPY = v
	}
	if raw := values.Get("max_apy"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, "max_apy must be a decimal", false
		}
		q.maxAPY = v
		q.hasMaxAPY = true
	}
	if q.hasMaxAPY && q.maxAPY < q.minAPY {
		return q, "max_apy must be greater than or equal to min_apy", false
	}
	if raw := values.Get("min_tvl"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return q, "min_tvl must be a non-negative decimal", false
		}
		q.minTVL = v
	}
	if raw := values.Get("categories"); raw != "" {
		q.categories = make(map[string]bool)
		for _, c := range strings.Split(raw, ",") {
			q.categories[strings.ToLower(strings.TrimSpace(c))] = true
		}
	}
	if raw := values.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return q, "limit must be a positive integer", false
		}
		q.limit = v
	}
	return q, "", true
}

// handleYields serves the filtered, scored opportunity list, highest APY
// first, truncated to the requested limit
func (s *Server) handleYields(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query, reason, ok := parseYieldsQuery(r)
	if !ok {
		s.errorResponse(w, "yields", http.StatusBadRequest, codeValidationError, reason)
		return
	}

	scored, freshness, err := s.scoredDataset(r.Context())
	if err != nil {
		s.errorResponse(w, "yields", http.StatusServiceUnavailable, codeUpstreamUnavailable, err.Error())
		return
	}

	matched := make([]model.Opportunity, 0, len(scored))
	for _, o := range scored {
		if o.APY < query.minAPY || o.TVL < query.minTVL {
			continue
		}
		if query.hasMaxAPY && o.APY > query.maxAPY {
			continue
		}
		if query.categories != nil && !query.categories[o.Category] {
			continue
		}
		matched = append(matched, o)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].APY != matched[j].APY {
			return matched[i].APY > matched[j].APY
		}
		return matched[i].PoolID < matched[j].PoolID
	})
	if len(matched) > query.limit {
		matched = matched[:query.limit]
	}

	body := map[string]interface{}{
		"status":   "success",
		"count":    len(matched),
		"stale":    freshness == cache.Stale,
		"degraded": freshness == cache.Degraded,
		"data":     matched,
	}
	if len(matched) == 0 {
		body["reason"] = "no opportunities matched the requested filters"
	}
	s.jsonResponse(w, "yields", http.StatusOK, body)
}

// handleAnalytics serves the market-wide summary snapshot
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	scored, freshness, err := s.scoredDataset(r.Context())
	if err != nil {
		s.errorResponse(w, "analytics", http.StatusServiceUnavailable, codeUpstreamUnavailable, err.Error())
		return
	}

	s.jsonResponse(w, "analytics", http.StatusOK, map[string]interface{}{
		"status":    "success",
		"stale":     freshness == cache.Stale,
		"degraded":  freshness == cache.Degraded,
		"analytics": analytics.Summarize(scored),
	})
}

// handleOptimize derives a portfolio allocation from a validated request
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request model.PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.errorResponse(w, "optimize", http.StatusBadRequest, codeValidationError, "invalid request body")
		return
	}
	if reason, ok := request.Validate(); !ok {
		s.errorResponse(w, "optimize", http.StatusBadRequest, codeValidationError, reason)
		return
	}

	scored, freshness, err := s.scoredDataset(r.Context())
	if err != nil {
		s.errorResponse(w, "optimize", http.StatusServiceUnavailable, codeUpstreamUnavailable, err.Error())
		return
	}

	result := portfolio.Optimize(request, scored)

	s.jsonResponse(w, "optimize", http.StatusOK, map[string]interface{}{
		"status":   "success",
		"stale":    freshness == cache.Stale,
		"degraded": freshness == cache.Degraded,
		"strategy": map[string]interface{}{
			"expected_apy":    result.ExpectedAPY,
			"annual_yield":    result.AnnualYield,
			"total_positions": len(result.Allocations),
			"risk_tolerance":  request.RiskTolerance,
			"time_horizon":    request.TimeHorizon,
		},
		"allocations":  result.Allocations,
		"reason":       result.Reason,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleHealth reports liveness plus cache freshness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := s.cache.Inspect(datasetKey)

	dataStatus := "no_data"
	if info.Populated {
		dataStatus = "healthy"
		if info.Degraded {
			dataStatus = "degraded"
		}
		if info.Expired {
			dataStatus = "stale"
		}
	}

	body := map[string]interface{}{
		"status":               "healthy",
		"uptime":               time.Since(startTime).String(),
		"data_status":          dataStatus,
		"cached_opportunities": info.RecordCount,
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
	}
	if info.Populated {
		body["cache_last_updated"] = info.FetchedAt.UTC().Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// jsonResponse writes a success response, signing it when the data
// integrity service is enabled
func (s *Server) jsonResponse(w http.ResponseWriter, endpoint string, statusCode int, body interface{}) {
	if s.metrics != nil {
		s.metrics.requestCounter.WithLabelValues(endpoint, "success").Inc()
	}

	var payload interface{} = body
	if s.integrity != nil {
		signed, err := s.integrity.Sign(body)
		if err != nil {
			logrus.Warnf("Failed to sign response: %v", err)
		} else {
			payload = signed
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// errorResponse returns the structured error envelope
func (s *Server) errorResponse(w http.ResponseWriter, endpoint string, statusCode int, code, errorMsg string) {
	logrus.Warn(errorMsg)

	if s.metrics != nil {
		s.metrics.requestCounter.WithLabelValues(endpoint, "error").Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "error",
		"code":   code,
		"error":  errorMsg,
	})
}
