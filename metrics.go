package weave

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type resolveStartKey struct{}

// MetricsMiddleware records binding resolutions with Prometheus: a counter of
// resolutions by key and outcome and a histogram of their latency.
type MetricsMiddleware struct {
	resolutions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetricsMiddleware creates the collectors and registers them with
// registerer. A nil registerer uses prometheus.DefaultRegisterer.
func NewMetricsMiddleware(registerer prometheus.Registerer) (*MetricsMiddleware, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &MetricsMiddleware{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "weave",
				Name:      "resolutions_total",
				Help:      "Binding resolutions by key and outcome",
			},
			[]string{"key", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "weave",
				Name:      "resolution_duration_seconds",
				Help:      "Binding resolution latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"key"},
		),
	}

	if err := registerer.Register(m.resolutions); err != nil {
		return nil, err
	}

	if err := registerer.Register(m.duration); err != nil {
		registerer.Unregister(m.resolutions)

		return nil, err
	}

	return m, nil
}

// BeforeResolve implements Middleware.
func (m *MetricsMiddleware) BeforeResolve(ctx context.Context, key string) (context.Context, error) {
	return context.WithValue(ctx, resolveStartKey{}, time.Now()), nil
}

// AfterResolve implements Middleware.
func (m *MetricsMiddleware) AfterResolve(ctx context.Context, key string, value any, err error) error {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}

	m.resolutions.WithLabelValues(key, outcome).Inc()

	if start, ok := ctx.Value(resolveStartKey{}).(time.Time); ok {
		m.duration.WithLabelValues(key).Observe(time.Since(start).Seconds())
	}

	return nil
}
