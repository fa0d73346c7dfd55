package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько заняла обработка HTTP-запроса
	RequestDuration *prometheus.HistogramVec

	// Traffic: загрузки ресурсов по фактическому источнику (remote/file/sample)
	SourceFetchTotal *prometheus.CounterVec

	// Latency: время одного обращения к первичному источнику
	SourceFetchDuration *prometheus.HistogramVec

	// Errors: 1 — ресурс сейчас отдается из встроенных примеров
	SourceFallback *prometheus.GaugeVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Reload: перезагрузки снапшота по триггеру (startup, api, broadcast, ticker)
	ReloadTotal *prometheus.CounterVec

	// Aggregation: время построения представления по снапшоту
	AggregationDuration prometheus.Histogram

	// Cache: обращения к L1/L2 (hit, miss, error)
	CacheLookups *prometheus.CounterVec

	// Journal: заполненность буфера (backpressure)
	JournalBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socdash_request_duration_seconds",
			Help:    "Histogram of request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"route", "status"}),

		SourceFetchTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "socdash_source_fetch_total",
			Help: "Resolved resources by effective origin.",
		}, []string{"resource", "origin"}),

		SourceFetchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socdash_source_fetch_duration_seconds",
			Help:    "Latency of primary source fetches.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"resource", "status"}),

		SourceFallback: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "socdash_source_fallback",
			Help: "Whether the resource is currently served from bundled samples (1) or not (0).",
		}, []string{"resource"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "socdash_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"source"}),

		ReloadTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "socdash_reload_total",
			Help: "Snapshot reloads by trigger and outcome.",
		}, []string{"trigger", "status"}),

		AggregationDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "socdash_aggregation_duration_seconds",
			Help:    "Time spent deriving a dashboard view from a snapshot.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),

		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "socdash_view_cache_lookups_total",
			Help: "View cache lookups by layer and result.",
		}, []string{"layer", "result"}),

		JournalBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "socdash_journal_buffer_utilization",
			Help: "Current number of events in load journal buffer.",
		}),
	}
}
