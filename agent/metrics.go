package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/alusync/metric"
)

// Metrics holds Prometheus metrics for one agent
type Metrics struct {
	state              prometheus.Gauge
	connects           prometheus.Counter
	connectFailures    prometheus.Counter
	reconnectAttempts  prometheus.Counter
	handshakes         prometheus.Counter
	pushesReceived     *prometheus.CounterVec
	invocationFailures *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

func newMetrics(registry *metric.MetricsRegistry, name string) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	service := "agent_" + name
	labels := prometheus.Labels{"agent": name}
	m := &Metrics{
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "alusync",
			Subsystem:   "agent",
			Name:        "connection_state",
			Help:        "Connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=closed)",
			ConstLabels: labels,
		}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "alusync",
			Subsystem:   "agent",
			Name:        "connects_total",
			Help:        "Successful connections to the hub",
			ConstLabels: labels,
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "alusync",
			Subsystem:   "agent",
			Name:        "connect_failures_total",
			Help:        "Failed on-demand connection attempts",
			ConstLabels: labels,
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "alusync",
			Subsystem:   "agent",
			Name:        "reconnect_attempts_total",
			Help:        "Reconnection attempts after a lost connection",
			ConstLabels: labels,
		}),
		handshakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "alusync",
			Subsystem:   "agent",
			Name:        "handshakes_total",
			Help:        "Completed ClientReady handshakes",
			ConstLabels: labels,
		}),
		pushesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "alusync",
			Subsystem:   "agent",
			Name:        "pushes_received_total",
			Help:        "Hub pushes received by type",
			ConstLabels: labels,
		}, []string{"type"}),
		invocationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "alusync",
			Subsystem:   "agent",
			Name:        "invocation_failures_total",
			Help:        "Failed hub invocations by method",
			ConstLabels: labels,
		}, []string{"method"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "alusync",
			Subsystem:   "agent",
			Name:        "request_duration_seconds",
			Help:        "Request to completion round-trip time",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			ConstLabels: labels,
		}, []string{"method"}),
	}

	if err := registry.RegisterGauge(service, "connection_state", m.state); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(service, "connects", m.connects); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(service, "connect_failures", m.connectFailures); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(service, "reconnect_attempts", m.reconnectAttempts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(service, "handshakes", m.handshakes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(service, "pushes_received", m.pushesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(service, "invocation_failures", m.invocationFailures); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(service, "request_duration", m.requestDuration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) setState(s ConnectionState) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}

func (m *Metrics) connected() {
	if m == nil {
		return
	}
	m.connects.Inc()
}

func (m *Metrics) connectFailed() {
	if m == nil {
		return
	}
	m.connectFailures.Inc()
}

func (m *Metrics) reconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

func (m *Metrics) handshake() {
	if m == nil {
		return
	}
	m.handshakes.Inc()
}

func (m *Metrics) received(typ string) {
	if m == nil {
		return
	}
	m.pushesReceived.WithLabelValues(typ).Inc()
}

func (m *Metrics) invocationFailed(method string) {
	if m == nil {
		return
	}
	m.invocationFailures.WithLabelValues(method).Inc()
}

func (m *Metrics) observeRequest(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}
