package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/alusync/metric"
)

type ringMetrics struct {
	appends  prometheus.Counter
	evicts   prometheus.Counter
	size     prometheus.Gauge
	capacity float64
	fill     prometheus.Gauge
}

func newRingMetrics(registry *metric.MetricsRegistry, name string, capacity int) (*ringMetrics, error) {
	labels := prometheus.Labels{"ring": name}
	opts := func(field, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "alusync", Subsystem: "ring", Name: field, Help: help, ConstLabels: labels}
	}

	m := &ringMetrics{
		appends:  prometheus.NewCounter(prometheus.CounterOpts(opts("appends_total", "Items appended"))),
		evicts:   prometheus.NewCounter(prometheus.CounterOpts(opts("evictions_total", "Items evicted to make room"))),
		size:     prometheus.NewGauge(prometheus.GaugeOpts(opts("items", "Items currently stored"))),
		fill:     prometheus.NewGauge(prometheus.GaugeOpts(opts("fill_ratio", "Stored items over capacity"))),
		capacity: float64(capacity),
	}

	if err := registry.RegisterCounter(name, "ring_appends", m.appends); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "ring_evictions", m.evicts); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(name, "ring_items", m.size); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(name, "ring_fill_ratio", m.fill); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ringMetrics) appended(size int, evicted bool) {
	if m == nil {
		return
	}
	m.appends.Inc()
	if evicted {
		m.evicts.Inc()
	}
	m.size.Set(float64(size))
	m.fill.Set(float64(size) / m.capacity)
}
