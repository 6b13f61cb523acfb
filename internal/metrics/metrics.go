package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	classifications *prometheus.CounterVec
	degraded        prometheus.Counter
	resolveFailures *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	alarmsRaised    *prometheus.CounterVec
	alarmsResolved  prometheus.Counter
	notifyFailures  *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewMetrics builds the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "air_classifications_total",
			Help: "Classified readings by parameter and status.",
		}, []string{"parameter", "status"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "air_classifications_degraded_total",
			Help: "Batch entries defaulted to good after a threshold lookup failure.",
		}),
		resolveFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "air_threshold_resolve_failures_total",
			Help: "Threshold resolution failures by operation.",
		}, []string{"op"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "air_threshold_cache_hits_total",
			Help: "Threshold cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "air_threshold_cache_misses_total",
			Help: "Threshold cache misses.",
		}),
		alarmsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "air_alarms_raised_total",
			Help: "Alarm events raised by status.",
		}, []string{"status"}),
		alarmsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "air_alarms_resolved_total",
			Help: "Alarm events resolved.",
		}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "air_notify_failures_total",
			Help: "Failed alarm notifications by notifier.",
		}, []string{"notifier"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "air_sweep_duration_seconds",
			Help:    "Duration of alarm sweeps.",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "air_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "air_http_request_duration_seconds",
			Help:    "HTTP request durations by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		m.classifications,
		m.degraded,
		m.resolveFailures,
		m.cacheHits,
		m.cacheMisses,
		m.alarmsRaised,
		m.alarmsResolved,
		m.notifyFailures,
		m.sweepDuration,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Classified(parameter, status string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(parameter, status).Inc()
}

func (m *Metrics) Degraded() {
	if m == nil {
		return
	}
	m.degraded.Inc()
}

func (m *Metrics) ResolveFailed(op string) {
	if m == nil {
		return
	}
	m.resolveFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) AlarmRaised(status string) {
	if m == nil {
		return
	}
	m.alarmsRaised.WithLabelValues(status).Inc()
}

func (m *Metrics) AlarmResolved() {
	if m == nil {
		return
	}
	m.alarmsResolved.Inc()
}

func (m *Metrics) NotifyFailed(notifier string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(notifier).Inc()
}

func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records request count and latency
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default gatherer
func Handler() http.Handler {
	return promhttp.Handler()
}
