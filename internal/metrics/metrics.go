package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "receipt_tracker"

// Outcome labels for processed files.
const (
	OutcomeAdded     = "added"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// Metrics holds the ingestion collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	files         *prometheus.CounterVec
	batches       prometheus.Counter
	batchSize     prometheus.Histogram
	batchDuration prometheus.Histogram
	breakerState  *prometheus.GaugeVec
}

// New регистрирует метрики приложения.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Processed receipt files by outcome and error kind.",
		}, []string{"outcome", "kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Upload batches processed.",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batch_files",
			Help:      "Files per upload batch.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batch_duration_seconds",
			Help:      "Time to settle every file of a batch.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9),
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "breaker_state",
			Help:      "Circuit breaker state of the extraction provider (0 closed, 1 half-open, 2 open).",
		}, []string{"provider"}),
	}

	registry.MustRegister(m.files, m.batches, m.batchSize, m.batchDuration, m.breakerState)
	return m
}

// ObserveBatch учитывает одну загрузку.
func (m *Metrics) ObserveBatch(files int, seconds float64) {
	m.batches.Inc()
	m.batchSize.Observe(float64(files))
	m.batchDuration.Observe(seconds)
}

// ObserveFile учитывает результат обработки файла; kind пуст для успешных файлов.
func (m *Metrics) ObserveFile(outcome, kind string) {
	m.files.WithLabelValues(outcome, kind).Add(1)
}

// SetBreakerState публикует состояние предохранителя провайдера.
func (m *Metrics) SetBreakerState(provider string, state int) {
	m.breakerState.WithLabelValues(provider).Set(float64(state))
}

// Handler отдает метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
