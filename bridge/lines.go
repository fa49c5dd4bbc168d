package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/pkg/retry"
)

// LineIO is raw digital line access, addressed by BCM line number.
type LineIO interface {
	// Setup claims outputs as driven lines and inputs as sensed lines.
	Setup(outputs, inputs []int) error
	Write(line int, high bool) error
	Read(line int) (bool, error)
	Close() error
}

// RPIOLines drives Raspberry Pi GPIO through /dev/gpiomem.
type RPIOLines struct {
	mu     sync.Mutex
	open   bool
	output map[int]rpio.Pin
	input  map[int]rpio.Pin
}

// NewRPIOLines returns unopened lines; Setup maps the GPIO registers.
func NewRPIOLines() *RPIOLines {
	return &RPIOLines{
		output: make(map[int]rpio.Pin),
		input:  make(map[int]rpio.Pin),
	}
}

func (r *RPIOLines) Setup(outputs, inputs []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		if err := rpio.Open(); err != nil {
			return errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrHardwareUnavailable, err),
				"RPIOLines", "Setup", "open gpio memory")
		}
		r.open = true
	}

	for _, line := range outputs {
		pin := rpio.Pin(line)
		pin.Output()
		pin.Low()
		r.output[line] = pin
	}
	for _, line := range inputs {
		pin := rpio.Pin(line)
		pin.Input()
		pin.PullDown()
		r.input[line] = pin
	}
	return nil
}

func (r *RPIOLines) Write(line int, high bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pin, ok := r.output[line]
	if !r.open || !ok {
		return errors.WrapInvalid(fmt.Errorf("line %d is not a configured output", line), "RPIOLines", "Write", "resolve line")
	}
	if high {
		pin.High()
	} else {
		pin.Low()
	}
	return nil
}

func (r *RPIOLines) Read(line int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pin, ok := r.input[line]
	if !r.open || !ok {
		return false, errors.WrapInvalid(fmt.Errorf("line %d is not a configured input", line), "RPIOLines", "Read", "resolve line")
	}
	return pin.Read() == rpio.High, nil
}

func (r *RPIOLines) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return nil
	}
	for _, pin := range r.output {
		pin.Low()
	}
	r.open = false
	return rpio.Close()
}

// RetryingLines retries transient line failures. Invalid errors, such as an
// unconfigured line, are returned at once.
type RetryingLines struct {
	next LineIO
	cfg  retry.Config
}

// NewRetryingLines wraps next. A zero cfg uses retry.Quick().
func NewRetryingLines(next LineIO, cfg retry.Config) *RetryingLines {
	if cfg.MaxAttempts == 0 {
		cfg = retry.Quick()
	}
	return &RetryingLines{next: next, cfg: cfg}
}

func (r *RetryingLines) attempt(fn func() error) error {
	return retry.Do(context.Background(), r.cfg, func() error { return markPermanent(fn()) })
}

// markPermanent stops retries for errors another attempt cannot fix.
func markPermanent(err error) error {
	if errors.IsInvalid(err) || errors.IsFatal(err) {
		return retry.NonRetryable(err)
	}
	return err
}

func (r *RetryingLines) Setup(outputs, inputs []int) error {
	return unwrapNonRetryable(r.attempt(func() error { return r.next.Setup(outputs, inputs) }))
}

func (r *RetryingLines) Write(line int, high bool) error {
	return unwrapNonRetryable(r.attempt(func() error { return r.next.Write(line, high) }))
}

func (r *RetryingLines) Read(line int) (bool, error) {
	v, err := retry.DoWithResult(context.Background(), r.cfg, func() (bool, error) {
		high, err := r.next.Read(line)
		return high, markPermanent(err)
	})
	return v, unwrapNonRetryable(err)
}

func (r *RetryingLines) Close() error { return r.next.Close() }

func unwrapNonRetryable(err error) error {
	var nre *retry.NonRetryableError
	if stderrors.As(err, &nre) {
		return nre.Err
	}
	return err
}
