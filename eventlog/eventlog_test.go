package eventlog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alusync/metric"
)

func TestLog_DefaultCapacity(t *testing.T) {
	l, err := New(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, l.Capacity())
	assert.Equal(t, 0, l.Count())
}

func TestLog_NeverExceedsCapacity(t *testing.T) {
	l, err := New(DefaultCapacity)
	require.NoError(t, err)

	const n = 1500
	for i := 0; i < n; i++ {
		l.Record(fmt.Sprintf("conn-%d", i), "A0", i%2 == 0)
		require.LessOrEqual(t, l.Count(), DefaultCapacity)
	}

	assert.Equal(t, DefaultCapacity, l.Count())
	assert.Equal(t, int64(n-DefaultCapacity), l.Evicted())

	events := l.Snapshot()
	require.Len(t, events, DefaultCapacity)
	// FIFO: the oldest n-capacity events are gone.
	assert.Equal(t, fmt.Sprintf("conn-%d", n-DefaultCapacity), events[0].ConnectionID)
	assert.Equal(t, fmt.Sprintf("conn-%d", n-1), events[len(events)-1].ConnectionID)
}

func TestLog_Recent(t *testing.T) {
	l, err := New(10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		l.Record("c", fmt.Sprintf("L%d", i), false)
	}

	recent := l.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "L3", recent[0].Label)
	assert.Equal(t, "L4", recent[1].Label)

	assert.Len(t, l.Recent(100), 5)
	assert.Empty(t, l.Recent(0))
}

func TestLog_RecordStampsUTCMillis(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, int(250*time.Millisecond), time.FixedZone("X", 3600))
	l, err := New(4, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	ev := l.Record("conn-1", LabelClientReady, false)
	assert.Equal(t, fixed.UnixMilli(), ev.TimestampMillis)
	assert.Equal(t, time.UTC, ev.Time().Location())
	assert.True(t, ev.Time().Equal(fixed))
}

func TestLog_Sinks(t *testing.T) {
	var got []string
	l, err := New(2,
		WithSink(func(ev SyncEvent) { got = append(got, "a:"+ev.Label) }),
		WithSink(func(ev SyncEvent) { got = append(got, "b:"+ev.Label) }),
		WithSink(nil),
	)
	require.NoError(t, err)

	l.Record("c", "S0", true)
	assert.Equal(t, []string{"a:S0", "b:S0"}, got)
}

func TestLog_ClosedDropsSilently(t *testing.T) {
	calls := 0
	l, err := New(2, WithSink(func(SyncEvent) { calls++ }))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l.Record("c", "A0", true)
	assert.Equal(t, 0, l.Count())
	assert.Equal(t, 0, calls)
}

func TestLog_Metrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	l, err := New(3, WithMetrics(reg))
	require.NoError(t, err)
	l.Record("c", "A0", true)

	_, err = New(3, WithMetrics(reg))
	assert.Error(t, err, "second log on one registry collides")
}

func TestLog_Concurrent(t *testing.T) {
	l, err := New(100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				l.Record(fmt.Sprintf("g%d", g), "B1", true)
				_ = l.Recent(5)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 100, l.Count())
	assert.Equal(t, int64(1500), l.Evicted())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Invoke:GetState", InvokeLabel("GetState"))
	assert.Equal(t, "InvokeFail:PinToggled:Invalid", InvokeFailLabel("PinToggled", "Invalid"))
	assert.True(t, IsLifecycle(LabelConnected))
	assert.True(t, IsLifecycle(InvokeLabel("X")))
	assert.False(t, IsLifecycle("A0"))
}
