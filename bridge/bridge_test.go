package bridge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alusync/config"
	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/pins"
	"github.com/c360/alusync/pkg/retry"
)

// board is a LineIO wired to a software 74181 the way config.DefaultGPIO
// wires a real one.
type board struct {
	mu       sync.Mutex
	wiring   config.GPIOConfig
	levels   map[int]bool
	outputs  []int
	inputs   []int
	failures int // transient failures before each operation succeeds
	pending  int
	closed   bool
}

func newBoard() *board {
	return &board{wiring: config.DefaultGPIO(), levels: make(map[int]bool)}
}

func (b *board) flaky() error {
	if b.pending > 0 {
		b.pending--
		return errors.ErrHardwareUnavailable
	}
	b.pending = b.failures
	return nil
}

func (b *board) Setup(outputs, inputs []int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs, b.inputs = outputs, inputs
	b.pending = b.failures
	return nil
}

func (b *board) Write(line int, high bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.flaky(); err != nil {
		return err
	}
	b.levels[line] = high
	return nil
}

func (b *board) Read(line int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.flaky(); err != nil {
		return false, err
	}

	values := make(map[string]bool)
	for name, l := range b.wiring.Inputs {
		values[name] = b.levels[l]
	}
	out := Evaluate(InputsFrom(values))
	for name, l := range b.wiring.Outputs {
		if l == line {
			return out.Bit(name), nil
		}
	}
	return false, errors.WrapInvalid(fmt.Errorf("line %d not wired", line), "board", "Read", "resolve")
}

func (b *board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func TestEmulator_ApplyAndRead(t *testing.T) {
	e := NewEmulator()
	for pin, v := range map[string]bool{"a0": true, "A2": true, "B0": true, "B1": true, "S0": true, "S3": true, "CN": true} {
		require.NoError(t, e.ApplyPin(pin, v))
	}

	out, err := e.ReadOutputs()
	require.NoError(t, err)
	assert.Equal(t, uint8(8), out.F(), "5 + 3")
	assert.True(t, e.Inputs()["A0"])
}

func TestEmulator_UnknownPin(t *testing.T) {
	e := NewEmulator()
	err := e.ApplyPin("Q7", true)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrUnrecognizedPin)
}

func TestEmulator_HooksRunOnChangeOnly(t *testing.T) {
	e := NewEmulator()
	var changes []string
	e.OnInputChange(func(pin string, state bool) {
		changes = append(changes, fmt.Sprintf("%s=%v", pin, state))
	})

	require.NoError(t, e.ApplyPin("m", true))
	require.NoError(t, e.ApplyPin("M", true))
	require.NoError(t, e.ApplyPin("M", false))

	assert.Equal(t, []string{"M=true", "M=false"}, changes)
}

func TestEmulator_ToggleRunsHooks(t *testing.T) {
	e := NewEmulator()
	var seen []string
	e.OnInputChange(func(pin string, state bool) {
		seen = append(seen, fmt.Sprintf("%s=%v", pin, state))
	})

	v, err := e.Toggle("cn")
	require.NoError(t, err)
	assert.True(t, v)
	v, err = e.Toggle("CN")
	require.NoError(t, err)
	assert.False(t, v)
	assert.Equal(t, []string{"CN=true", "CN=false"}, seen)

	_, err = e.Toggle("F0")
	assert.True(t, errors.IsInvalid(err))
}

func TestGPIOBridge_DrivesBoard(t *testing.T) {
	brd := newBoard()
	b, err := NewGPIOBridge(config.DefaultGPIO(), brd, nil)
	require.NoError(t, err)
	assert.Len(t, brd.outputs, len(pins.InputPins))
	assert.Len(t, brd.inputs, len(pins.OutputPins))

	emu := NewEmulator()
	apply := map[string]bool{"A0": true, "A1": true, "B0": true, "S0": true, "S3": true, "CN": true}
	for pin, v := range apply {
		require.NoError(t, b.ApplyPin(pin, v))
		require.NoError(t, emu.ApplyPin(pin, v))
	}

	got, err := b.ReadOutputs()
	require.NoError(t, err)
	want, _ := emu.ReadOutputs()
	assert.Equal(t, want, got)
	assert.Equal(t, uint8(4), got.F(), "3 + 1")

	require.NoError(t, b.Close())
	assert.True(t, brd.closed)
}

func TestGPIOBridge_RejectsBadWiring(t *testing.T) {
	wiring := config.DefaultGPIO()
	delete(wiring.Inputs, "M")
	_, err := NewGPIOBridge(wiring, newBoard(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	b, err := NewGPIOBridge(config.DefaultGPIO(), newBoard(), nil)
	require.NoError(t, err)
	assert.True(t, errors.IsInvalid(b.ApplyPin("F0", true)), "outputs cannot be driven")
}

func TestRetryingLines_RecoversTransientFailures(t *testing.T) {
	brd := newBoard()
	brd.failures = 2
	cfg := retry.Fixed(time.Millisecond, 5)

	b, err := NewGPIOBridge(config.DefaultGPIO(), NewRetryingLines(brd, cfg), nil)
	require.NoError(t, err)
	require.NoError(t, b.ApplyPin("A3", true))
	require.NoError(t, b.ApplyPin("M", true))

	out, err := b.ReadOutputs()
	require.NoError(t, err)
	assert.Equal(t, uint8(0b0111), out.F(), "logic NOT A")
}

func TestRetryingLines_GivesUp(t *testing.T) {
	brd := newBoard()
	brd.failures = 10
	lines := NewRetryingLines(brd, retry.Fixed(time.Millisecond, 3))
	require.NoError(t, lines.Setup([]int{2}, nil))

	err := lines.Write(2, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrHardwareUnavailable)
}

func TestRetryingLines_InvalidNotRetried(t *testing.T) {
	brd := newBoard()
	lines := NewRetryingLines(brd, retry.Config{})
	require.NoError(t, lines.Setup(nil, nil))

	_, err := lines.Read(99)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.False(t, retry.IsNonRetryable(err))
}

// recorder is a fake hub client.
type recorder struct {
	mu      sync.Mutex
	toggles []string
	reports []pins.OutputsSnapshot
}

func (r *recorder) SendPinToggled(_ context.Context, pin string, state bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toggles = append(r.toggles, fmt.Sprintf("%s=%v", pin, state))
	return nil
}

func (r *recorder) ReportAluOutputs(_ context.Context, o pins.OutputsSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, o)
	return nil
}

func (r *recorder) snapshot() ([]string, []pins.OutputsSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.toggles...), append([]pins.OutputsSnapshot(nil), r.reports...)
}

func newControlled(t *testing.T) (*Emulator, *Controller, *recorder) {
	t.Helper()
	emu := NewEmulator()
	c := NewController(emu)
	rec := &recorder{}
	c.Attach(rec)
	return emu, c, rec
}

func TestController_RemoteToggleIsNotEchoed(t *testing.T) {
	emu, c, rec := newControlled(t)

	c.RemotePinToggled("a0", true)

	toggles, reports := rec.snapshot()
	assert.Empty(t, toggles, "remote change must not be sent back")
	require.Len(t, reports, 1)
	assert.True(t, emu.Inputs()["A0"])
	want, _ := emu.ReadOutputs()
	assert.Equal(t, want, reports[0])
	assert.False(t, c.Guard().Active())
}

func TestController_LocalChangeForwarded(t *testing.T) {
	emu, _, rec := newControlled(t)

	require.NoError(t, emu.ApplyPin("S1", true))

	toggles, reports := rec.snapshot()
	assert.Equal(t, []string{"S1=true"}, toggles)
	assert.Len(t, reports, 1)
}

func TestController_SnapshotAppliesAllWithoutEcho(t *testing.T) {
	emu, c, rec := newControlled(t)

	c.RemoteSnapshot(map[string]bool{"A0": true, "B0": true, "S0": true, "S3": true, "CN": true, "bogus": true})

	toggles, reports := rec.snapshot()
	assert.Empty(t, toggles)
	require.Len(t, reports, 1)
	assert.Equal(t, uint8(2), reports[0].F(), "1 + 1")
	assert.True(t, emu.Inputs()["S3"])
}

func TestController_UnknownRemotePinSkipped(t *testing.T) {
	_, c, rec := newControlled(t)
	c.RemotePinToggled("Z9", true)

	toggles, reports := rec.snapshot()
	assert.Empty(t, toggles)
	assert.Empty(t, reports)
}

func TestController_OtherPinsForwardDuringRemoteApply(t *testing.T) {
	emu := NewEmulator()
	c := NewController(emu)
	rec := &recorder{}
	c.Attach(rec)

	inApply := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Guard().Apply("A0", func() {
			close(inApply)
			<-release
		})
	}()
	<-inApply

	require.NoError(t, emu.ApplyPin("B2", true))
	close(release)
	<-done

	toggles, _ := rec.snapshot()
	assert.Equal(t, []string{"B2=true"}, toggles)
}

func TestController_ToggleForwardedAndReported(t *testing.T) {
	emu, _, rec := newControlled(t)

	_, err := emu.Toggle("A1")
	require.NoError(t, err)

	toggles, reports := rec.snapshot()
	assert.Equal(t, []string{"A1=true"}, toggles)
	assert.Len(t, reports, 1)
}

func TestController_ReportEvery(t *testing.T) {
	_, c, rec := newControlled(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.ReportEvery(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, reports := rec.snapshot()
		return len(reports) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReportEvery did not stop on cancel")
	}

	toggles, _ := rec.snapshot()
	assert.Empty(t, toggles)

	// A non-positive interval returns at once.
	c.ReportEvery(context.Background(), 0)
}

func TestController_DetachedIsQuiet(t *testing.T) {
	emu := NewEmulator()
	c := NewController(emu)
	require.NoError(t, emu.ApplyPin("A0", true))
	assert.NoError(t, c.ReportOutputs(context.Background()))
}

func TestController_Handlers(t *testing.T) {
	_, c, _ := newControlled(t)
	h := c.Handlers()
	assert.NotNil(t, h.OnPinToggled)
	assert.NotNil(t, h.OnSnapshotPins)
	assert.Nil(t, h.OnAluOutputsChanged)
}

func TestOpen(t *testing.T) {
	b, closeFn, err := Open(config.BridgeConfig{Backend: config.BackendEmulator}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Emulator{}, b)
	assert.NoError(t, closeFn())

	_, _, err = Open(config.BridgeConfig{Backend: "fpga"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
