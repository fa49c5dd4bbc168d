// Package health tracks the health of the components inside one alusync
// process and serves the aggregate as JSON.
package health

import (
	"regexp"
	"time"
)

// State is the coarse health of a component.
type State string

const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

// level orders states for the health gauge: unhealthy 0, degraded 1,
// healthy 2.
func (s State) level() int {
	switch s {
	case StateHealthy:
		return 2
	case StateDegraded:
		return 1
	default:
		return 0
	}
}

var (
	urlRegex        = regexp.MustCompile(`(https?|wss?|nats)://[^\s]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(:\d{2,5})?\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|secret)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status represents the health state of a component or system
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      State     `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool { return s.Status == StateHealthy }

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool { return s.Status == StateDegraded }

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool { return s.Status == StateUnhealthy }

// FromError builds an unhealthy status from err with URLs, addresses and
// credentials masked, so it is safe to serve on an unauthenticated endpoint.
func FromError(component string, err error) Status {
	if err == nil {
		return NewHealthy(component, "ok")
	}
	return NewUnhealthy(component, sanitize(err.Error()))
}

func sanitize(msg string) string {
	msg = urlRegex.ReplaceAllString(msg, "[URL]")
	msg = ipAddrRegex.ReplaceAllString(msg, "[IP]")
	return credentialRegex.ReplaceAllString(msg, "[REDACTED]")
}
