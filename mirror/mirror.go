// Package mirror publishes audit events to NATS for live observers. It is
// fan-out only: events are not persisted and are dropped when the publish
// queue is full.
package mirror

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/alusync/config"
	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/eventlog"
	"github.com/c360/alusync/metric"
	"github.com/c360/alusync/pkg/worker"
)

// Publisher sends one message. natsclient.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Config holds mirror settings
type Config struct {
	Subject   string
	QueueSize int
	Workers   int
}

// ConfigFrom builds a mirror Config from the file configuration section.
func ConfigFrom(c config.MirrorConfig) Config {
	return Config{Subject: c.Subject, QueueSize: c.QueueSize, Workers: 2}
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics registers the publish pool metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(m *Mirror) { m.registry = registry }
}

// Mirror forwards events from an eventlog.Log to a Publisher.
type Mirror struct {
	cfg      Config
	pub      Publisher
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	pool     *worker.Pool[eventlog.SyncEvent]

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a mirror. Call Start before attaching its Sink.
func New(pub Publisher, cfg Config, opts ...Option) (*Mirror, error) {
	if pub == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Mirror", "New", "publisher")
	}
	if cfg.Subject == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Mirror", "New", "subject")
	}

	m := &Mirror{cfg: cfg, pub: pub, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "mirror", "subject", cfg.Subject)

	poolOpts := []worker.Option[eventlog.SyncEvent]{
		worker.WithErrorHandler(func(ev eventlog.SyncEvent, err error) {
			m.logger.Debug("Event not mirrored", "label", ev.Label, "error", err)
		}),
	}
	if m.registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[eventlog.SyncEvent](m.registry, "mirror"))
	}
	pool, err := worker.NewPool(cfg.Workers, cfg.QueueSize, m.publish, poolOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Mirror", "New", "create worker pool")
	}
	m.pool = pool
	return m, nil
}

func (m *Mirror) publish(ctx context.Context, ev eventlog.SyncEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return m.pub.Publish(ctx, m.cfg.Subject, data)
}

// Start launches the publish workers. They keep ctx's values but not its
// cancellation: only Stop ends them, after the queue has drained.
func (m *Mirror) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := m.pool.Start(runCtx); err != nil {
		cancel()
		return err
	}
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	return nil
}

// Stop waits up to timeout for queued events to be published, then cancels
// any publish still running.
func (m *Mirror) Stop(timeout time.Duration) error {
	err := m.pool.Stop(timeout)
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	return err
}

// Sink returns an eventlog sink that queues each event for publishing.
// It never blocks.
func (m *Mirror) Sink() eventlog.Sink {
	return func(ev eventlog.SyncEvent) {
		if err := m.pool.Submit(ev); err != nil {
			m.logger.Debug("Event dropped", "label", ev.Label, "error", err)
		}
	}
}

// Stats reports the publish pool counters.
func (m *Mirror) Stats() worker.PoolStats {
	return m.pool.Stats()
}
