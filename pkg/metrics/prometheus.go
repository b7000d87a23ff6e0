package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// HTTP метрики
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitedTotal     *prometheus.CounterVec

	// Бизнес-метрики
	SimulationRunsTotal    *prometheus.CounterVec
	SimulationDuration     *prometheus.HistogramVec
	TrialsPerRun           *prometheus.HistogramVec
	OverrunProbability     *prometheus.HistogramVec
	RecommendationsTotal   *prometheus.CounterVec
	LastOverrunProbability *prometheus.GaugeVec
	CacheRequestsTotal     *prometheus.CounterVec
	SweepPointsTotal       prometheus.Counter

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var (
	defaultMu      sync.Mutex
	defaultMetrics *Metrics
)

// InitMetrics регистрирует метрики и делает их глобальными
func InitMetrics(namespace, subsystem string) *Metrics {
	m := newMetrics(namespace, subsystem)

	defaultMu.Lock()
	defaultMetrics = m
	defaultMu.Unlock()
	return m
}

func newMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		RateLimitedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),

		SimulationRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "simulation_runs_total",
				Help:      "Total number of simulation runs",
			},
			[]string{"operation", "status"},
		),

		SimulationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "simulation_duration_seconds",
				Help:      "Duration of simulation runs",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),

		TrialsPerRun: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "simulation_trials",
				Help:      "Number of trials per simulation run",
				Buckets:   []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"operation"},
		),

		OverrunProbability: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "overrun_probability",
				Help:      "Distribution of estimated budget overrun probabilities",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"operation"},
		),

		RecommendationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "recommendations_total",
				Help:      "Overall recommendations issued",
			},
			[]string{"recommendation"},
		),

		LastOverrunProbability: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "last_overrun_probability",
				Help:      "Overrun probability of the most recent run",
			},
			[]string{"operation"},
		),

		CacheRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "result_cache_requests_total",
				Help:      "Result cache lookups by outcome",
			},
			[]string{"result"},
		),

		SweepPointsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sweep_points_total",
				Help:      "Total number of invited-count points evaluated by sweeps",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}
}

// Get возвращает глобальные метрики, при первом вызове регистрирует их
func Get() *Metrics {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultMetrics == nil {
		defaultMetrics = newMetrics("guestrisk", "")
	}
	return defaultMetrics
}

// RecordHTTPRequest записывает метрики HTTP запроса
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimited увеличивает счётчик отклонённых запросов
func (m *Metrics) RecordRateLimited(route string) {
	m.RateLimitedTotal.WithLabelValues(route).Inc()
}

// RecordSimulation записывает метрики одного прогона
func (m *Metrics) RecordSimulation(operation string, success bool, duration time.Duration, trials int) {
	status := "success"
	if !success {
		status = "error"
	}

	m.SimulationRunsTotal.WithLabelValues(operation, status).Inc()
	m.SimulationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if success {
		m.TrialsPerRun.WithLabelValues(operation).Observe(float64(trials))
	}
}

// RecordOutcome записывает итог прогона: вероятность перерасхода и рекомендацию
func (m *Metrics) RecordOutcome(operation string, overrunProbability float64, recommendation string) {
	m.OverrunProbability.WithLabelValues(operation).Observe(overrunProbability)
	m.LastOverrunProbability.WithLabelValues(operation).Set(overrunProbability)
	m.RecommendationsTotal.WithLabelValues(recommendation).Inc()
}

// RecordCacheLookup записывает попадание или промах кэша результатов
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// RecordSweepPoints увеличивает счётчик точек перебора
func (m *Metrics) RecordSweepPoints(n int) {
	m.SweepPointsTotal.Add(float64(n))
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewMetricsServer собирает HTTP сервер для метрик
func NewMetricsServer(port int, path string) *http.Server {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint
	})

	return &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// StartMetricsServer запускает HTTP сервер для метрик
func StartMetricsServer(port int) error {
	return NewMetricsServer(port, "/metrics").ListenAndServe()
}
