// Package metrics Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 进程内全部业务指标。nil *Metrics 上的方法都是空操作，测试里可直接传 nil
type Metrics struct {
	FollowOps          *prometheus.CounterVec
	DeliveryAttempts   *prometheus.CounterVec
	DeliveryLatency    prometheus.Histogram
	FederationStatus   *prometheus.CounterVec
	ReplicatorQueue    prometheus.Gauge
	ReplicatorLag      prometheus.Histogram
	ReplicatorDropped  prometheus.Counter
	CacheLookups       *prometheus.CounterVec
	ReportTransitions  *prometheus.CounterVec
	AccessRequestsOpen prometheus.Counter

	gatherer prometheus.Gatherer
}

// New 在 reg 上注册指标；reg 为 nil 时使用新的独立 registry
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		FollowOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socmed_follow_operations_total",
			Help: "Follow graph mutations by operation and result",
		}, []string{"op", "result"}),
		DeliveryAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socmed_federation_delivery_attempts_total",
			Help: "Per-server delivery attempts by result",
		}, []string{"result"}),
		DeliveryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "socmed_federation_delivery_seconds",
			Help:    "Latency of a single inbox delivery",
			Buckets: prometheus.DefBuckets,
		}),
		FederationStatus: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socmed_federation_transitions_total",
			Help: "Post federation status transitions by target status",
		}, []string{"to"}),
		ReplicatorQueue: f.NewGauge(prometheus.GaugeOpts{
			Name: "socmed_index_replicator_queue_length",
			Help: "Pending follower-index invalidations",
		}),
		ReplicatorLag: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "socmed_index_replicator_lag_seconds",
			Help:    "Time from enqueue to invalidation",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		ReplicatorDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "socmed_index_replicator_dropped_total",
			Help: "Invalidations dropped because the queue was full",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socmed_follower_index_lookups_total",
			Help: "Follower index cache lookups by result",
		}, []string{"result"}),
		ReportTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socmed_report_transitions_total",
			Help: "Report status changes by target status",
		}, []string{"to"}),
		AccessRequestsOpen: f.NewCounter(prometheus.CounterOpts{
			Name: "socmed_channel_access_requests_total",
			Help: "Channel access requests created",
		}),
		gatherer: reg,
	}
}

// Handler /metrics 端点
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFollow(op string, err error) {
	if m == nil {
		return
	}
	m.FollowOps.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *Metrics) ObserveDelivery(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DeliveryAttempts.WithLabelValues(resultLabel(err)).Inc()
	m.DeliveryLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.FederationStatus.WithLabelValues(to).Inc()
}

func (m *Metrics) SetReplicatorQueue(n int) {
	if m == nil {
		return
	}
	m.ReplicatorQueue.Set(float64(n))
}

func (m *Metrics) ObserveReplicatorLag(d time.Duration) {
	if m == nil {
		return
	}
	m.ReplicatorLag.Observe(d.Seconds())
}

func (m *Metrics) IncReplicatorDropped() {
	if m == nil {
		return
	}
	m.ReplicatorDropped.Inc()
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) ObserveReport(to string) {
	if m == nil {
		return
	}
	m.ReportTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) IncAccessRequest() {
	if m == nil {
		return
	}
	m.AccessRequestsOpen.Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
