package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ MetricFactory = (*PrometheusFactory)(nil)

// PrometheusFactory is a MetricFactory backed by a Prometheus registerer.
// Dotted metric names become underscore-separated and counters gain the
// conventional _total suffix, so "fiatbridge.transaction.initiated" is
// exported as "fiatbridge_transaction_initiated_total".
type PrometheusFactory struct {
	namespace string
	factory   promauto.Factory

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusFactory creates a factory registering into reg. A nil reg
// uses prometheus.DefaultRegisterer. namespace may be empty.
func NewPrometheusFactory(namespace string, reg prometheus.Registerer) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusFactory{
		namespace:  namespace,
		factory:    promauto.With(reg),
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter returns the counter for name, registering it on first use.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := f.factory.NewCounter(prometheus.CounterOpts{
		Namespace: f.namespace,
		Name:      metricName(name) + "_total",
		Help:      "Count of " + name + " events.",
	})
	f.counters[name] = c
	return c
}

// Histogram returns the histogram for name, registering it on first use.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := f.factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: f.namespace,
		Name:      metricName(name),
		Help:      "Distribution of " + name + " in token base units.",
		Buckets:   prometheus.ExponentialBuckets(1, 10, 12),
	})
	f.histograms[name] = h
	return h
}

func metricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
