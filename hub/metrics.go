package hub

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/alusync/metric"
)

const serviceName = "hub"

// Metrics holds Prometheus metrics for the hub
type Metrics struct {
	connectionsActive  prometheus.Gauge
	connectionsTotal   prometheus.Counter
	messagesReceived   *prometheus.CounterVec
	broadcasts         *prometheus.CounterVec
	invocationFailures *prometheus.CounterVec
	sendQueueDrops     prometheus.Counter
	rateLimited        prometheus.Counter
	handshakes         prometheus.Counter
}

// newMetrics creates and registers hub metrics. A nil registry disables
// metrics.
func newMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "alusync",
			Subsystem: serviceName,
			Name:      "connections_active",
			Help:      "Number of open client connections",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alusync",
			Subsystem: serviceName,
			Name:      "connections_total",
			Help:      "Total client connections accepted",
		}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alusync",
			Subsystem: serviceName,
			Name:      "messages_received_total",
			Help:      "Inbound requests by message type",
		}, []string{"type"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alusync",
			Subsystem: serviceName,
			Name:      "pushes_total",
			Help:      "Messages pushed to clients by type",
		}, []string{"type"}),
		invocationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alusync",
			Subsystem: serviceName,
			Name:      "invocation_failures_total",
			Help:      "Failed invocations by method and error kind",
		}, []string{"method", "kind"}),
		sendQueueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alusync",
			Subsystem: serviceName,
			Name:      "send_queue_drops_total",
			Help:      "Connections closed because their send queue was full",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alusync",
			Subsystem: serviceName,
			Name:      "rate_limited_total",
			Help:      "Inbound frames rejected by the per-connection rate limit",
		}),
		handshakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alusync",
			Subsystem: serviceName,
			Name:      "handshakes_total",
			Help:      "ClientReady handshakes served",
		}),
	}

	if err := registry.RegisterGauge(serviceName, "connections_active", m.connectionsActive); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(serviceName, "connections_total", m.connectionsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(serviceName, "messages_received", m.messagesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(serviceName, "pushes", m.broadcasts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(serviceName, "invocation_failures", m.invocationFailures); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(serviceName, "send_queue_drops", m.sendQueueDrops); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(serviceName, "rate_limited", m.rateLimited); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(serviceName, "handshakes", m.handshakes); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) connected(active int) {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Set(float64(active))
}

func (m *Metrics) disconnected(active int) {
	if m == nil {
		return
	}
	m.connectionsActive.Set(float64(active))
}

func (m *Metrics) received(typ string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(typ).Inc()
}

func (m *Metrics) pushed(typ string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.broadcasts.WithLabelValues(typ).Add(float64(n))
}

func (m *Metrics) failed(method, kind string) {
	if m == nil {
		return
	}
	m.invocationFailures.WithLabelValues(method, kind).Inc()
}

func (m *Metrics) limited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.sendQueueDrops.Inc()
}

func (m *Metrics) handshake() {
	if m == nil {
		return
	}
	m.handshakes.Inc()
}
