package buffer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/metric"
)

func newTestRing[T any](t *testing.T, capacity int, opts ...Option[T]) *Ring[T] {
	t.Helper()
	r, err := NewRing[T](capacity, opts...)
	require.NoError(t, err)
	return r
}

func TestRing_Empty(t *testing.T) {
	r := newTestRing[int](t, 5)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 5, r.Cap())
	assert.Empty(t, r.Snapshot())
	assert.Empty(t, r.Last(3))
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := newTestRing[int](t, 0)
	assert.Equal(t, 1, r.Cap())
	require.NoError(t, r.Append(1))
	require.NoError(t, r.Append(2))
	assert.Equal(t, []int{2}, r.Snapshot())
}

func TestRing_EvictsOldestFirst(t *testing.T) {
	var evicted []string
	r := newTestRing[string](t, 3, WithEvictHook(func(s string) { evicted = append(evicted, s) }))

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, r.Append(s))
	}

	assert.Equal(t, []string{"c", "d", "e"}, r.Snapshot())
	assert.Equal(t, []string{"a", "b"}, evicted)
	assert.Equal(t, int64(5), r.Appended())
	assert.Equal(t, int64(2), r.Evicted())
	assert.Equal(t, 3, r.Len())
}

func TestRing_Last(t *testing.T) {
	r := newTestRing[int](t, 4)
	for i := 1; i <= 6; i++ {
		require.NoError(t, r.Append(i))
	}

	tests := []struct {
		k    int
		want []int
	}{
		{-1, []int{}},
		{0, []int{}},
		{1, []int{6}},
		{3, []int{4, 5, 6}},
		{10, []int{3, 4, 5, 6}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprint(test.k), func(t *testing.T) {
			assert.Equal(t, test.want, r.Last(test.k))
		})
	}
}

func TestRing_SnapshotIsACopy(t *testing.T) {
	r := newTestRing[int](t, 2)
	require.NoError(t, r.Append(1))
	snap := r.Snapshot()
	snap[0] = 99
	assert.Equal(t, []int{1}, r.Snapshot())
}

func TestRing_Close(t *testing.T) {
	r := newTestRing[int](t, 2)
	require.NoError(t, r.Append(1))
	require.NoError(t, r.Close())

	err := r.Append(2)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrClosed)
	assert.Equal(t, []int{1}, r.Snapshot())
}

func TestRing_ConcurrentAppends(t *testing.T) {
	r := newTestRing[int](t, 100)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = r.Append(i)
				_ = r.Last(10)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, r.Len())
	assert.Equal(t, int64(4000), r.Appended())
	assert.Equal(t, int64(3900), r.Evicted())
}

func TestRing_Metrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	r := newTestRing[int](t, 2, WithMetrics[int](reg, "audit"))
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Append(i))
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(r.metrics.appends))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.evicts))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.metrics.size))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.fill))

	_, err := NewRing[int](2, WithMetrics[int](reg, "audit"))
	assert.Error(t, err, "duplicate registration")
}
