package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/alusync/errors"
)

// MetricsRegistry is one process's Prometheus registry. Collectors are keyed
// by owner and name so two components cannot silently share one.
type MetricsRegistry struct {
	prom    *prometheus.Registry
	process *Process

	mu    sync.Mutex
	owned map[string]struct{}
}

// NewMetricsRegistry returns a registry with the process collectors and the
// Go runtime collectors already registered.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prom:    prometheus.NewRegistry(),
		process: newProcess(),
		owned:   make(map[string]struct{}),
	}
	r.prom.MustRegister(r.process.collectors()...)
	r.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying registry, for serving or tests.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry { return r.prom }

// Process returns the process-wide collectors.
func (r *MetricsRegistry) Process() *Process { return r.process }

// RegisterCounter registers a counter owned by owner.
func (r *MetricsRegistry) RegisterCounter(owner, name string, c prometheus.Counter) error {
	return r.Register(owner, name, c)
}

// RegisterGauge registers a gauge owned by owner.
func (r *MetricsRegistry) RegisterGauge(owner, name string, g prometheus.Gauge) error {
	return r.Register(owner, name, g)
}

// RegisterCounterVec registers a counter vector owned by owner.
func (r *MetricsRegistry) RegisterCounterVec(owner, name string, c *prometheus.CounterVec) error {
	return r.Register(owner, name, c)
}

// RegisterHistogramVec registers a histogram vector owned by owner.
func (r *MetricsRegistry) RegisterHistogramVec(owner, name string, h *prometheus.HistogramVec) error {
	return r.Register(owner, name, h)
}

// Register adds c under owner.name. Reusing a key, or a descriptor that
// Prometheus already knows, is an invalid-class error.
func (r *MetricsRegistry) Register(owner, name string, c prometheus.Collector) error {
	key := owner + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.owned[key]; taken {
		return errors.WrapInvalid(fmt.Errorf("%s already registered", key),
			"MetricsRegistry", "Register", "duplicate metric registration")
	}

	err := r.prom.Register(c)
	var already prometheus.AlreadyRegisteredError
	switch {
	case err == nil:
		r.owned[key] = struct{}{}
		return nil
	case stderrors.As(err, &already):
		return errors.WrapInvalid(err, "MetricsRegistry", "Register", "prometheus conflict for "+key)
	default:
		return errors.WrapFatal(err, "MetricsRegistry", "Register", "register "+key)
	}
}
