// Package eventlog keeps the hub's bounded audit trail of SyncEvents.
package eventlog

import (
	"strings"
	"time"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/metric"
	"github.com/c360/alusync/pkg/buffer"
)

// DefaultCapacity is the number of events kept when no capacity is given.
const DefaultCapacity = 1000

// Lifecycle labels. Pin toggles use the pin name as label.
const (
	LabelConnected       = "OnConnected"
	LabelDisconnected    = "OnDisconnected"
	LabelClientReady     = "ClientReady"
	LabelRequestSnapshot = "RequestSnapshot"
)

// InvokeLabel is the label recorded for a successful invocation.
func InvokeLabel(method string) string {
	return "Invoke:" + method
}

// InvokeFailLabel is the label recorded for a failed invocation.
func InvokeFailLabel(method, kind string) string {
	return "InvokeFail:" + method + ":" + kind
}

// IsLifecycle reports whether label is a lifecycle tag rather than a pin.
func IsLifecycle(label string) bool {
	switch label {
	case LabelConnected, LabelDisconnected, LabelClientReady, LabelRequestSnapshot:
		return true
	}
	return strings.HasPrefix(label, "Invoke:") || strings.HasPrefix(label, "InvokeFail:")
}

// SyncEvent is one immutable audit record.
type SyncEvent struct {
	TimestampMillis int64  `json:"timestampMillis"`
	ConnectionID    string `json:"connectionId"`
	Label           string `json:"label"`
	Value           bool   `json:"value"`
}

// Time returns the event timestamp in UTC.
func (e SyncEvent) Time() time.Time {
	return time.UnixMilli(e.TimestampMillis).UTC()
}

// Sink receives every appended event after it is stored. Sinks run on the
// appending goroutine and must not block.
type Sink func(SyncEvent)

// Option configures a Log.
type Option func(*Log)

// WithMetrics exports log size and evictions through the registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(l *Log) { l.registry = registry }
}

// WithSink adds a sink. Multiple sinks run in registration order.
func WithSink(s Sink) Option {
	return func(l *Log) {
		if s != nil {
			l.sinks = append(l.sinks, s)
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// Log is a bounded FIFO of SyncEvents. When full, the oldest event is
// evicted. Safe for concurrent use.
type Log struct {
	buf      *buffer.Ring[SyncEvent]
	sinks    []Sink
	registry *metric.MetricsRegistry
	now      func() time.Time
}

// New creates a log holding at most capacity events. A capacity below one
// uses DefaultCapacity.
func New(capacity int, opts ...Option) (*Log, error) {
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	l := &Log{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}

	buf, err := buffer.NewRing[SyncEvent](capacity, buffer.WithMetrics[SyncEvent](l.registry, "eventlog"))
	if err != nil {
		return nil, errors.Wrap(err, "eventlog", "New", "create ring")
	}
	l.buf = buf
	return l, nil
}

// Record stamps and appends an event.
func (l *Log) Record(connectionID, label string, value bool) SyncEvent {
	ev := SyncEvent{
		TimestampMillis: l.now().UTC().UnixMilli(),
		ConnectionID:    connectionID,
		Label:           label,
		Value:           value,
	}
	l.Append(ev)
	return ev
}

// Append stores ev, evicting the oldest event when the log is full.
func (l *Log) Append(ev SyncEvent) {
	if err := l.buf.Append(ev); err != nil {
		return
	}
	for _, s := range l.sinks {
		s(ev)
	}
}

// Count returns the number of stored events.
func (l *Log) Count() int { return l.buf.Len() }

// Capacity returns the maximum number of stored events.
func (l *Log) Capacity() int { return l.buf.Cap() }

// Evicted returns how many events have been dropped to make room.
func (l *Log) Evicted() int64 { return l.buf.Evicted() }

// Snapshot returns every stored event, oldest first.
func (l *Log) Snapshot() []SyncEvent { return l.buf.Snapshot() }

// Recent returns the newest n events, oldest first.
func (l *Log) Recent(n int) []SyncEvent { return l.buf.Last(n) }

// Close stops accepting new events.
func (l *Log) Close() error { return l.buf.Close() }
