package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.class.String())
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"no connection", ErrNoConnection, true},
		{"request timeout", ErrRequestTimeout, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"invalid data", ErrInvalidData, false},
		{"timeout in message", fmt.Errorf("dial: i/o timeout"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("x")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("x")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsTransient(test.err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrInvalidConfig))
	assert.Equal(t, ErrorInvalid, Classify(ErrUnknownMessage))
	assert.Equal(t, ErrorInvalid, Classify(fmt.Errorf("wrapped: %w", ErrParsingFailed)))
	assert.Equal(t, ErrorTransient, Classify(errors.New("something odd")))
}

func TestWrapHelpers(t *testing.T) {
	base := errors.New("boom")

	err := WrapInvalid(base, "hub", "PinToggled", "decode payload")
	require.Error(t, err)
	assert.Equal(t, "hub.PinToggled: decode payload failed: boom", err.Error())
	assert.True(t, IsInvalid(err))
	assert.True(t, errors.Is(err, base))

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "hub", ce.Component)
	assert.Equal(t, "PinToggled", ce.Operation)

	assert.True(t, IsTransient(WrapTransient(base, "agent", "connect", "dial")))
	assert.True(t, IsFatal(WrapFatal(base, "config", "Load", "read file")))

	assert.Nil(t, Wrap(nil, "a", "b", "c"))
	assert.Nil(t, WrapTransient(nil, "a", "b", "c"))
	assert.Nil(t, WrapInvalid(nil, "a", "b", "c"))
	assert.Nil(t, WrapFatal(nil, "a", "b", "c"))
}

type customErr struct{}

func (customErr) Error() string { return "custom" }

func TestKindName(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"panic", &PanicError{Value: "bad"}, "Panic"},
		{"invalid", WrapInvalid(errors.New("x"), "c", "m", "a"), "Invalid"},
		{"transient", WrapTransient(errors.New("x"), "c", "m", "a"), "Transient"},
		{"fatal", WrapFatal(errors.New("x"), "c", "m", "a"), "Fatal"},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), "DeadlineExceeded"},
		{"custom value type", customErr{}, "customErr"},
		{"custom pointer type", &PanicError{}, "Panic"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, KindName(test.err))
		})
	}
}

func TestClassification_ClassifiedWinsOverSentinel(t *testing.T) {
	err := WrapTransient(ErrInvalidConfig, "bridge", "Open", "probe backend")
	assert.True(t, IsTransient(err))
	assert.False(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	wrapped := fmt.Errorf("connection 2 apply A0: %w", ErrUnrecognizedPin)
	assert.True(t, IsInvalid(wrapped))
	assert.False(t, IsTransient(wrapped), "sentinel class beats message hints")

	assert.False(t, IsInvalid(errors.New("connection refused")))
	assert.False(t, IsTransient(errors.New("odd")))
	assert.Equal(t, ErrorTransient, Classify(errors.New("odd")))
}
