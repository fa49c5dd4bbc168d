package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alusync"

// Process holds the collectors every alusync binary exports regardless of
// role. Role-specific collectors are registered by their owners.
type Process struct {
	health         *prometheus.GaugeVec
	natsConnected  prometheus.Gauge
	natsReconnects prometheus.Counter
}

func newProcess() *Process {
	return &Process{
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "state",
			Help:      "Component health (0=unhealthy, 1=degraded, 2=healthy)",
		}, []string{"component"}),
		natsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "nats_connected",
			Help:      "1 while the mirror holds a NATS connection",
		}),
		natsReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "nats_reconnects_total",
			Help:      "NATS reconnections seen by the mirror",
		}),
	}
}

func (p *Process) collectors() []prometheus.Collector {
	return []prometheus.Collector{p.health, p.natsConnected, p.natsReconnects}
}

// SetHealth records a component's health level, 0 through 2.
func (p *Process) SetHealth(component string, level int) {
	p.health.WithLabelValues(component).Set(float64(level))
}

// ForgetHealth drops a component's series.
func (p *Process) ForgetHealth(component string) {
	p.health.DeleteLabelValues(component)
}

// SetNATSConnected records the mirror connection state.
func (p *Process) SetNATSConnected(up bool) {
	if up {
		p.natsConnected.Set(1)
		return
	}
	p.natsConnected.Set(0)
}

// CountNATSReconnect increments the reconnect counter.
func (p *Process) CountNATSReconnect() { p.natsReconnects.Inc() }
