// Package errors provides the error classification used across alusync.
// Transport failures, invalid requests and unrecoverable faults are told apart
// by class so that callers can decide whether to retry, report or stop.
package errors

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Lifecycle errors
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrClosed         = errors.New("closed")

	// Connection and transport errors
	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrSendQueueFull     = errors.New("queue full")
	ErrRateLimited       = errors.New("rate limited")

	// Request errors
	ErrInvalidData     = errors.New("invalid data format")
	ErrUnknownMessage  = errors.New("unknown message type")
	ErrParsingFailed   = errors.New("parsing failed")
	ErrRequestTimeout  = errors.New("request timeout")
	ErrUnrecognizedPin = errors.New("unrecognized pin")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Hardware errors
	ErrHardwareUnavailable = errors.New("hardware unavailable")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// sentinel classes apply when no ClassifiedError is in the chain.
var sentinelClass = []struct {
	err   error
	class ErrorClass
}{
	{ErrInvalidConfig, ErrorFatal},
	{ErrMissingConfig, ErrorFatal},
	{ErrInvalidData, ErrorInvalid},
	{ErrParsingFailed, ErrorInvalid},
	{ErrUnknownMessage, ErrorInvalid},
	{ErrUnrecognizedPin, ErrorInvalid},
	{ErrConnectionTimeout, ErrorTransient},
	{ErrConnectionLost, ErrorTransient},
	{ErrNoConnection, ErrorTransient},
	{ErrRequestTimeout, ErrorTransient},
	{ErrRateLimited, ErrorTransient},
	{ErrHardwareUnavailable, ErrorTransient},
	{context.DeadlineExceeded, ErrorTransient},
}

// transientHints match messages of unclassified network errors.
var transientHints = []string{"timeout", "connection", "broken pipe", "temporary", "unavailable"}

// classOf reports the class of err and whether anything in its chain
// determined it.
func classOf(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	for _, s := range sentinelClass {
		if errors.Is(err, s.err) {
			return s.class, true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range transientHints {
		if strings.Contains(msg, hint) {
			return ErrorTransient, true
		}
	}
	return ErrorTransient, false
}

func is(err error, class ErrorClass) bool {
	if err == nil {
		return false
	}
	c, known := classOf(err)
	return known && c == class
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return is(err, ErrorTransient) }

// IsFatal reports whether err should stop the process or component.
func IsFatal(err error) bool { return is(err, ErrorFatal) }

// IsInvalid reports whether err was caused by bad input.
func IsInvalid(err error) bool { return is(err, ErrorInvalid) }

// Classify returns the class of err. Unknown errors count as transient so
// callers keep retrying.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}
	c, _ := classOf(err)
	return c
}

// PanicError is produced when a recovered panic is turned back into an error.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// KindName returns a short name for the kind of err, used in audit labels
// such as "InvokeFail:<method>:<kind>". Classified errors report their class,
// recovered panics report "Panic", anything else reports its Go type name.
func KindName(err error) string {
	if err == nil {
		return ""
	}

	var pe *PanicError
	if errors.As(err, &pe) {
		return "Panic"
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		switch ce.Class {
		case ErrorTransient:
			return "Transient"
		case ErrorInvalid:
			return "Invalid"
		case ErrorFatal:
			return "Fatal"
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "DeadlineExceeded"
	}
	if errors.Is(err, context.Canceled) {
		return "Canceled"
	}

	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return "Error"
}

// Wrap adds context in the form "component.method: action failed: err".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapAs(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapTransient is Wrap plus the transient class.
func WrapTransient(err error, component, method, action string) error {
	return wrapAs(ErrorTransient, err, component, method, action)
}

// WrapInvalid is Wrap plus the invalid class.
func WrapInvalid(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, err, component, method, action)
}

// WrapFatal is Wrap plus the fatal class.
func WrapFatal(err error, component, method, action string) error {
	return wrapAs(ErrorFatal, err, component, method, action)
}
