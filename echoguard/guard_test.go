package echoguard

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_ApplyScopesToSynchronousCall(t *testing.T) {
	g := New()
	assert.False(t, g.Suppressed("S0"))

	g.Apply("S0", func() {
		assert.True(t, g.Suppressed("S0"))
		assert.True(t, g.Suppressed("s0"), "pin keys ignore case")
		assert.True(t, g.Active())
	})

	assert.False(t, g.Suppressed("S0"))
	assert.False(t, g.Active())
}

func TestGuard_OtherPinStillForwards(t *testing.T) {
	g := New()
	g.Apply("S0", func() {
		assert.False(t, g.Suppressed("S1"))
	})
}

func TestGuard_ApplyAll(t *testing.T) {
	g := New()
	g.ApplyAll(func() {
		assert.True(t, g.Suppressed("A0"))
		assert.True(t, g.Suppressed("M"))
		assert.True(t, g.Suppressed("not-a-pin"))
	})
	assert.False(t, g.Suppressed("A0"))
}

func TestGuard_NestedDoesNotClearEarly(t *testing.T) {
	g := New()
	exitOuter := g.Enter("A1")
	exitInner := g.Enter("A1")

	exitInner()
	assert.True(t, g.Suppressed("A1"), "outer application still in progress")

	exitInner()
	assert.True(t, g.Suppressed("A1"), "exit is idempotent")

	exitOuter()
	assert.False(t, g.Suppressed("A1"))
}

func TestGuard_PanicLowersSuppression(t *testing.T) {
	g := New()
	require.Panics(t, func() {
		g.Apply("CN", func() { panic("apply failed") })
	})
	assert.False(t, g.Suppressed("CN"))

	require.Panics(t, func() {
		g.ApplyAll(func() { panic("snapshot failed") })
	})
	assert.False(t, g.Active())
}

// A remote apply of S0 is in progress while a local user toggles S1 on
// another goroutine. The S1 change must still go out; an S0 change made
// during the apply window must not.
func TestGuard_ConcurrentLocalToggleOfDifferentPin(t *testing.T) {
	g := New()
	var forwarded []string
	var mu sync.Mutex
	onLocalChange := func(pin string) {
		if g.Suppressed(pin) {
			return
		}
		mu.Lock()
		forwarded = append(forwarded, pin)
		mu.Unlock()
	}

	applying := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Apply("S0", func() {
			close(applying)
			onLocalChange("S0")
			<-release
		})
	}()

	<-applying
	onLocalChange("S1")
	close(release)
	<-done

	onLocalChange("S0")
	assert.Equal(t, []string{"S1", "S0"}, forwarded)
}

func TestGuard_ConcurrentApplications(t *testing.T) {
	g := New()
	var leaked atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				g.Apply("B2", func() {
					if !g.Suppressed("B2") {
						leaked.Add(1)
					}
				})
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Zero(t, leaked.Load())
	assert.False(t, g.Active())
}
