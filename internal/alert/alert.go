// Package alert delivers watchdog alerts to one or more notification sinks.
package alert

import (
	"context"
	"time"
)

// Kind distinguishes outage alerts from recovery notices.
type Kind string

const (
	KindOutage   Kind = "outage"
	KindRecovery Kind = "recovery"
)

// Alert describes one alert-worthy transition for a monitored service.
type Alert struct {
	// Kind is outage or recovery.
	Kind Kind `json:"kind"`

	// Service is the name of the affected dependency.
	Service string `json:"service"`

	// Status is the service status that triggered the alert.
	Status string `json:"status"`

	// Message is a human-readable description of the failure or recovery.
	Message string `json:"message"`

	// ConsecutiveFailures is the failure streak length when the alert fired.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// FiredAt is when the alert was raised.
	FiredAt time.Time `json:"fired_at"`
}

// Notifier delivers alerts to a sink. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Multi fans an alert out to several sinks. Delivery is best effort: a
// failing sink does not stop the others, and the first error is returned.
type Multi []Notifier

// Notify delivers the alert to every sink.
func (m Multi) Notify(ctx context.Context, a Alert) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
