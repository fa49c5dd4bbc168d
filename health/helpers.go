package health

import (
	"sort"
	"time"
)

func newStatus(component string, state State, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return newStatus(component, StateHealthy, message)
}

// NewUnhealthy creates a new unhealthy status
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StateUnhealthy, message)
}

// NewDegraded creates a new degraded status
func NewDegraded(component, message string) Status {
	return newStatus(component, StateDegraded, message)
}

// Aggregate combines sub-statuses: any unhealthy makes the result unhealthy,
// otherwise any degraded makes it degraded. Sub-statuses are sorted by
// component name.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "no components registered")
	}

	var status Status
	switch worst(subStatuses) {
	case StateUnhealthy:
		status = NewUnhealthy(component, "one or more components are unhealthy")
	case StateDegraded:
		status = NewDegraded(component, "one or more components are degraded")
	default:
		status = NewHealthy(component, "all components are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	sort.Slice(status.SubStatuses, func(i, j int) bool {
		return status.SubStatuses[i].Component < status.SubStatuses[j].Component
	})
	return status
}

func worst(statuses []Status) State {
	result := StateHealthy
	for _, s := range statuses {
		switch {
		case s.IsUnhealthy():
			return StateUnhealthy
		case s.IsDegraded():
			result = StateDegraded
		}
	}
	return result
}
