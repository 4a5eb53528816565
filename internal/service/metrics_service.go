package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/academic-engine/internal/models"
)

// Transaction outcomes.
const (
	TxOutcomeCommitted = "committed"
	TxOutcomeRejected  = "rejected"
	TxOutcomeAborted   = "aborted"
)

// Trigger handler results.
const (
	TriggerResultApplied = "applied"
	TriggerResultReplay  = "replay"
	TriggerResultFailed  = "failed"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	txDuration      *prometheus.HistogramVec
	txTotal         *prometheus.CounterVec
	txRetries       *prometheus.CounterVec
	triggerEvents   *prometheus.CounterVec
	triggerCursor   *prometheus.GaugeVec
	reportDuration  *prometheus.HistogramVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	txCommitted          uint64
	txAborted            uint64
	txRejected           uint64
	triggerApplied       uint64
	triggerReplays       uint64
	triggerFailures      uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "academic_transaction_duration_seconds",
		Help:    "Duration of coordinator transactions including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	txTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "academic_transactions_total",
		Help: "Coordinator transactions by outcome",
	}, []string{"operation", "outcome"})

	txRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "academic_transaction_retries_total",
		Help: "Coordinator transaction attempts retried after a conflict",
	}, []string{"operation"})

	triggerEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trigger_handler_events_total",
		Help: "Change events processed by trigger handlers",
	}, []string{"handler", "result"})

	triggerCursor := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trigger_stream_cursor",
		Help: "Last change sequence fully processed per stream",
	}, []string{"stream"})

	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_duration_seconds",
		Help:    "Duration of report computations",
		Buckets: prometheus.DefBuckets,
	}, []string{"report", "cached"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		txDuration, txTotal, txRetries, triggerEvents, triggerCursor, reportDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		txDuration:      txDuration,
		txTotal:         txTotal,
		txRetries:       txRetries,
		triggerEvents:   triggerEvents,
		triggerCursor:   triggerCursor,
		reportDuration:  reportDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveTransaction records the final outcome of a coordinator operation.
func (m *MetricsService) ObserveTransaction(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(operation).Observe(duration.Seconds())
	m.txTotal.WithLabelValues(operation, outcome).Inc()
	switch outcome {
	case TxOutcomeCommitted:
		atomic.AddUint64(&m.txCommitted, 1)
	case TxOutcomeAborted:
		atomic.AddUint64(&m.txAborted, 1)
	default:
		atomic.AddUint64(&m.txRejected, 1)
	}
}

// RecordTransactionRetry counts one retried attempt.
func (m *MetricsService) RecordTransactionRetry(operation string) {
	if m == nil {
		return
	}
	m.txRetries.WithLabelValues(operation).Inc()
}

// RecordTriggerEvent counts one handler application.
func (m *MetricsService) RecordTriggerEvent(handler, result string) {
	if m == nil {
		return
	}
	m.triggerEvents.WithLabelValues(handler, result).Inc()
	switch result {
	case TriggerResultApplied:
		atomic.AddUint64(&m.triggerApplied, 1)
	case TriggerResultReplay:
		atomic.AddUint64(&m.triggerReplays, 1)
	case TriggerResultFailed:
		atomic.AddUint64(&m.triggerFailures, 1)
	}
}

// SetTriggerCursor exposes consumer progress for a stream.
func (m *MetricsService) SetTriggerCursor(stream string, seq int64) {
	if m == nil {
		return
	}
	m.triggerCursor.WithLabelValues(stream).Set(float64(seq))
}

// ObserveReport records report latency.
func (m *MetricsService) ObserveReport(report string, cached bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(report, fmt.Sprintf("%t", cached)).Observe(duration.Seconds())
}

// Snapshot returns aggregated metrics suitable for the system endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		TransactionsCommitted:    atomic.LoadUint64(&m.txCommitted),
		TransactionsAborted:      atomic.LoadUint64(&m.txAborted),
		TransactionsRejected:     atomic.LoadUint64(&m.txRejected),
		TriggerApplied:           atomic.LoadUint64(&m.triggerApplied),
		TriggerReplays:           atomic.LoadUint64(&m.triggerReplays),
		TriggerFailures:          atomic.LoadUint64(&m.triggerFailures),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
