package hub

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "picopayments_hub"

// Metrics are kept per client so several clients in one process do not share counters.
type Metrics struct {
	Registry *prometheus.Registry

	calls    *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	metrics := &Metrics{
		Registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "calls_total",
			Help:      "Hub calls by method and result",
		}, []string{"method", "result"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "retries_total",
			Help:      "Hub calls that had to be retried",
		}, []string{"method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "call_duration_seconds",
			Help:      "Cumulative time spent in hub calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	metrics.Registry.MustRegister(metrics.calls, metrics.retries, metrics.duration)
	return metrics
}

func (metrics *Metrics) observe(method string, start time.Time, err error) {
	if metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.calls.WithLabelValues(method, result).Inc()
	metrics.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (metrics *Metrics) retried(method string) {
	if metrics == nil {
		return
	}
	metrics.retries.WithLabelValues(method).Inc()
}

// CallTimes returns the cumulative time spent per method.
func (metrics *Metrics) CallTimes() (map[string]time.Duration, error) {
	families, err := metrics.Registry.Gather()
	if err != nil {
		return nil, err
	}
	result := make(map[string]time.Duration)
	for _, family := range families {
		if family.GetName() != metricsNamespace+"_call_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "method" {
					seconds := metric.GetHistogram().GetSampleSum()
					result[label.GetValue()] = time.Duration(seconds * float64(time.Second))
				}
			}
		}
	}
	return result, nil
}
