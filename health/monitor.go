package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/c360/alusync/metric"
)

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMetrics mirrors every component state into the registry's
// alusync_health_state gauge.
func WithMetrics(registry *metric.MetricsRegistry) MonitorOption {
	return func(m *Monitor) {
		if registry != nil {
			m.metrics = registry.Process()
		}
	}
}

// Monitor holds the latest status of each component in one process.
type Monitor struct {
	system  string
	metrics *metric.Process

	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor returns a monitor whose aggregate is reported as system.
func NewMonitor(system string, opts ...MonitorOption) *Monitor {
	m := &Monitor{system: system, statuses: make(map[string]Status)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update replaces the status of component name.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.statuses[name] = status
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetHealth(name, status.Status.level())
	}
}

func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// Get returns the last status stored for name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[name]
	return s, ok
}

// Remove stops tracking name.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	delete(m.statuses, name)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ForgetHealth(name)
	}
}

// Aggregate folds every component into one status named after the system.
func (m *Monitor) Aggregate() Status {
	m.mu.RLock()
	subs := make([]Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		subs = append(subs, s)
	}
	m.mu.RUnlock()
	return Aggregate(m.system, subs)
}

// ServeHTTP answers with the aggregate as JSON: 503 when unhealthy, 200
// otherwise.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := m.Aggregate()
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
