package watchdog

import (
	"context"
	"sync"
	"time"
)

// Monitor probes one external dependency. Implementations must never let a
// probe error escape CheckHealth: every failure mode is converted into a
// ServiceHealth with an unhealthy or unknown status.
type Monitor interface {
	// Name returns the stable service name of the dependency.
	Name() string

	// CheckHealth runs one probe and returns its snapshot. The probe is
	// bounded by the configured timeout and updates the monitor's failure
	// streak as a side effect.
	CheckHealth(ctx context.Context) ServiceHealth

	// ShouldAlert reports whether the failure streak has just crossed the
	// alert threshold and no alert has fired for this outage episode yet.
	ShouldAlert() bool

	// MarkAlerted latches the alert for the current outage episode so
	// repeated failing cycles do not produce duplicate alerts.
	MarkAlerted()

	// ConsecutiveFailures returns the length of the current failure streak.
	ConsecutiveFailures() int
}

// streakState is the per-monitor failure bookkeeping shared by all concrete
// monitors. It is mutated only from the orchestrator's cycle, which runs one
// at a time; the mutex covers reads from other goroutines (read APIs, alert
// evaluation while a cycle is in flight).
type streakState struct {
	name           string
	alertThreshold int

	mu                  sync.Mutex
	consecutiveFailures int
	lastSuccess         time.Time
	alertSent           bool
}

func newStreakState(name string, alertThreshold int) streakState {
	return streakState{name: name, alertThreshold: alertThreshold}
}

// Name returns the monitored service name.
func (s *streakState) Name() string { return s.name }

// recordSuccess resets the failure streak and clears the alert latch,
// re-arming alerting for the next outage episode.
func (s *streakState) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveFailures = 0
	s.lastSuccess = time.Now()
	s.alertSent = false
}

// recordFailure extends the failure streak. The alert latch is left alone so
// an already-alerted episode stays silent.
func (s *streakState) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveFailures++
}

// ShouldAlert reports whether the streak has reached the threshold and no
// alert has fired yet for this episode.
func (s *streakState) ShouldAlert() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveFailures >= s.alertThreshold && !s.alertSent
}

// MarkAlerted latches the alert for the current episode.
func (s *streakState) MarkAlerted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertSent = true
}

// ConsecutiveFailures returns the current failure streak length.
func (s *streakState) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveFailures
}

// LastSuccess returns the time of the most recent healthy probe, zero if the
// dependency has never been seen healthy.
func (s *streakState) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

// snapshot builds a ServiceHealth for a finished probe.
func snapshot(service string, status HealthStatus, start time.Time, err error, meta map[string]interface{}) ServiceHealth {
	h := ServiceHealth{
		Service:        service,
		Status:         status,
		LastCheck:      time.Now(),
		ResponseTimeMS: float64(time.Since(start).Nanoseconds()) / 1e6,
		Metadata:       meta,
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}

// observe folds a finished probe snapshot into the streak state and returns
// the snapshot unchanged. Concrete monitors call it on every CheckHealth exit
// path so success and failure bookkeeping cannot be missed.
func (s *streakState) observe(h ServiceHealth) ServiceHealth {
	if h.Healthy() {
		s.recordSuccess()
	} else {
		s.recordFailure()
	}
	return h
}
