package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/alusync/metric"
)

type poolMetrics struct {
	depth     prometheus.Gauge
	submitted prometheus.Counter
	processed prometheus.Counter
	failed    prometheus.Counter
	dropped   prometheus.Counter
	latency   *prometheus.HistogramVec
}

func newPoolMetrics(registry *metric.MetricsRegistry, pool string) (*poolMetrics, error) {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   "alusync",
			Subsystem:   "worker",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"pool": pool},
		}
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts(opts(name, help)))
	}

	m := &poolMetrics{
		depth:     prometheus.NewGauge(prometheus.GaugeOpts(opts("queue_depth", "Items waiting for a worker"))),
		submitted: counter("submitted_total", "Items accepted by Submit"),
		processed: counter("processed_total", "Items handed to the processor"),
		failed:    counter("failed_total", "Items whose processor returned an error"),
		dropped:   counter("dropped_total", "Items rejected because the queue was full"),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "alusync",
			Subsystem:   "worker",
			Name:        "processing_duration_seconds",
			Help:        "Processor run time",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			ConstLabels: prometheus.Labels{"pool": pool},
		}, []string{"status"}),
	}

	owner := "worker_" + pool
	if err := registry.RegisterGauge(owner, "queue_depth", m.depth); err != nil {
		return nil, err
	}
	for name, c := range map[string]prometheus.Counter{
		"submitted": m.submitted,
		"processed": m.processed,
		"failed":    m.failed,
		"dropped":   m.dropped,
	} {
		if err := registry.RegisterCounter(owner, name, c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterHistogramVec(owner, "processing_duration", m.latency); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *poolMetrics) accepted(depth int) {
	if m == nil {
		return
	}
	m.submitted.Inc()
	m.depth.Set(float64(depth))
}

func (m *poolMetrics) rejected() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *poolMetrics) done(took time.Duration, err error, depth int) {
	if m == nil {
		return
	}
	m.processed.Inc()
	status := "success"
	if err != nil {
		m.failed.Inc()
		status = "error"
	}
	m.latency.WithLabelValues(status).Observe(took.Seconds())
	m.depth.Set(float64(depth))
}
