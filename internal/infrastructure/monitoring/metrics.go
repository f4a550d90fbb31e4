// Package monitoring provides the Prometheus, zap, and OpenTelemetry backends
// behind the domain's observability interfaces.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/service"
)

const namespace = "clusterkeys"

// Metrics manages the Prometheus metrics and implements service.Metrics.
// Metrics 管理 Prometheus 指标并实现 service.Metrics 接口。
type Metrics struct {
	RefreshTotal      *prometheus.CounterVec
	RefreshLatency    *prometheus.HistogramVec
	GenerationTotal   *prometheus.CounterVec
	LookupTotal       *prometheus.CounterVec
	CachedKeys        *prometheus.GaugeVec
	LatestExpirySecs  *prometheus.GaugeVec
	HasSeenKeys       *prometheus.GaugeVec
	NextRefreshSecs   *prometheus.GaugeVec
	StoreCallLatency  *prometheus.HistogramVec
	StoreCallErrors   *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPLatency       *prometheus.HistogramVec
	HTTPActiveRequest prometheus.Gauge
}

var _ service.Metrics = (*Metrics)(nil)

// NewMetrics creates the metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_total",
				Help:      "Total number of key cache refreshes.",
			},
			[]string{"purpose", "result"},
		),
		RefreshLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_latency_seconds",
				Help:      "Latency of key cache refreshes.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"purpose"},
		),
		GenerationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_total",
				Help:      "Key generation attempts by outcome.",
			},
			[]string{"purpose", "outcome"},
		),
		LookupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookup_total",
				Help:      "Signing and validation lookups by result.",
			},
			[]string{"purpose", "kind", "result"},
		),
		CachedKeys: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cached_keys",
				Help:      "Number of keys in the current snapshot.",
			},
			[]string{"purpose"},
		),
		LatestExpirySecs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "latest_expiry_seconds",
				Help:      "Seconds component of the latest cached key expiry.",
			},
			[]string{"purpose"},
		),
		HasSeenKeys: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "has_seen_keys",
				Help:      "1 once any refresh has returned a key.",
			},
			[]string{"purpose"},
		),
		NextRefreshSecs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "next_refresh_seconds",
				Help:      "Delay chosen before the next refresh cycle.",
			},
			[]string{"purpose"},
		),
		StoreCallLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_call_latency_seconds",
				Help:      "Latency of key store round trips.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),
		StoreCallErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_call_errors_total",
				Help:      "Failed key store round trips.",
			},
			[]string{"backend", "operation"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Admin API requests.",
			},
			[]string{"path", "method", "status"},
		),
		HTTPLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Admin API request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		HTTPActiveRequest: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_active_requests",
				Help:      "Admin API requests in flight.",
			},
		),
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordRefresh implements service.Metrics.
func (m *Metrics) RecordRefresh(purpose string, success bool, duration time.Duration) {
	m.RefreshTotal.WithLabelValues(purpose, result(success)).Inc()
	m.RefreshLatency.WithLabelValues(purpose).Observe(duration.Seconds())
}

// RecordGeneration implements service.Metrics.
func (m *Metrics) RecordGeneration(purpose, outcome string) {
	m.GenerationTotal.WithLabelValues(purpose, outcome).Inc()
}

// RecordLookup implements service.Metrics.
func (m *Metrics) RecordLookup(purpose, kind string, found bool) {
	res := "hit"
	if !found {
		res = "miss"
	}
	m.LookupTotal.WithLabelValues(purpose, kind, res).Inc()
}

// UpdateCacheState implements service.Metrics.
func (m *Metrics) UpdateCacheState(purpose string, keyCount int, latestExpiry models.LogicalTime, hasSeenKeys bool) {
	m.CachedKeys.WithLabelValues(purpose).Set(float64(keyCount))
	m.LatestExpirySecs.WithLabelValues(purpose).Set(float64(latestExpiry.Secs))
	seen := 0.0
	if hasSeenKeys {
		seen = 1
	}
	m.HasSeenKeys.WithLabelValues(purpose).Set(seen)
}

// RecordNextRefresh implements service.Metrics.
func (m *Metrics) RecordNextRefresh(purpose string, delay time.Duration) {
	m.NextRefreshSecs.WithLabelValues(purpose).Set(delay.Seconds())
}

// RecordStoreCall implements service.Metrics.
func (m *Metrics) RecordStoreCall(backend, operation string, duration time.Duration, err error) {
	m.StoreCallLatency.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		m.StoreCallErrors.WithLabelValues(backend, operation).Inc()
	}
}

// ActiveRequestsInc marks an admin request as started.
func (m *Metrics) ActiveRequestsInc() { m.HTTPActiveRequest.Inc() }

// ActiveRequestsDec marks an admin request as finished.
func (m *Metrics) ActiveRequestsDec() { m.HTTPActiveRequest.Dec() }

// ObserveRequest records one finished admin request.
func (m *Metrics) ObserveRequest(path, method string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

//Personal.AI order the ending
