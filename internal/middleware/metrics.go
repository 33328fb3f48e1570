package middleware

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	rpcTotal     *prometheus.CounterVec
	rpcDuration  *prometheus.HistogramVec
	comparisons  *prometheus.CounterVec
	observations prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rpcTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notapoint",
			Name:      "rpc_requests_total",
			Help:      "RPC calls by procedure and result code.",
		}, []string{"procedure", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "notapoint",
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		comparisons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notapoint",
			Name:      "comparisons_total",
			Help:      "Comparisons by kind and outcome (ok, partial, insufficient_data, invalid).",
		}, []string{"kind", "outcome"}),
		observations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "notapoint",
			Name:      "catalog_observations",
			Help:      "Price observations ingested into the live catalog.",
		}),
	}
	reg.MustRegister(m.rpcTotal, m.rpcDuration, m.comparisons, m.observations)
	return m
}

// Interceptor records call counts and latency.
func (m *Metrics) Interceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			procedure := req.Spec().Procedure
			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			m.rpcTotal.WithLabelValues(procedure, code).Inc()
			m.rpcDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}

// ObserveComparison counts one comparison outcome. A nil receiver is a no-op.
func (m *Metrics) ObserveComparison(kind, outcome string) {
	if m == nil {
		return
	}
	m.comparisons.WithLabelValues(kind, outcome).Inc()
}

// SetObservations reports the catalog's observation count.
func (m *Metrics) SetObservations(n int) {
	if m == nil {
		return
	}
	m.observations.Set(float64(n))
}
