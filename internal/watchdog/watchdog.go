package watchdog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ragpilot/ragpilot/internal/alert"
)

// historyLimit caps the number of retained snapshots per service. Oldest
// entries are evicted first.
const historyLimit = 100

// Options holds everything needed to construct a Watchdog.
type Options struct {
	Config   Config
	Logger   zerolog.Logger
	Notifier alert.Notifier
	Monitors []Monitor
}

// Watchdog orchestrates the monitor set: it runs concurrent probing rounds,
// retains bounded per-service history, fires at most one alert per outage
// episode and derives the adaptive polling interval.
//
// One Watchdog is created at process startup and lives for the process
// lifetime. Cycles run one at a time: cycleMu serializes them, so an
// on-demand round requested over the API while the scheduler loop is probing
// simply queues behind it. Without that, two overlapping rounds could both
// observe a streak at the threshold before either sets the latch and fire a
// duplicate alert for one outage episode. The read APIs are safe to call
// from other goroutines while a cycle is in flight.
type Watchdog struct {
	cfg      Config
	logger   zerolog.Logger
	notifier alert.Notifier
	monitors []Monitor
	tracer   trace.Tracer

	cycleMu sync.Mutex

	mu       sync.RWMutex
	history  map[string]*historyRing
	cycleLog []CycleMetrics
	alerted  map[string]bool
}

// New creates a Watchdog over the given monitor set.
func New(opts Options) *Watchdog {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = alert.NewLogNotifier(opts.Logger)
	}

	w := &Watchdog{
		cfg:      opts.Config.normalized(),
		logger:   opts.Logger,
		notifier: notifier,
		monitors: opts.Monitors,
		tracer:   otel.Tracer(meterName),
		history:  make(map[string]*historyRing),
		alerted:  make(map[string]bool),
	}
	for _, m := range opts.Monitors {
		w.history[m.Name()] = newHistoryRing(historyLimit)
	}
	return w
}

// Config returns the watchdog configuration.
func (w *Watchdog) Config() Config { return w.cfg }

// CheckAllSystems runs every monitor's probe concurrently and returns one
// snapshot per service. All results are collected before any history append
// or alert evaluation, so concurrent readers observe either the pre-cycle or
// the fully updated post-cycle state, never a partial mix.
func (w *Watchdog) CheckAllSystems(ctx context.Context) map[string]ServiceHealth {
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()

	ctx, span := w.tracer.Start(ctx, "watchdog.check_all_systems",
		trace.WithAttributes(attribute.Int("monitors", len(w.monitors))))
	defer span.End()

	results := make([]ServiceHealth, len(w.monitors))

	var wg sync.WaitGroup
	for i, m := range w.monitors {
		wg.Add(1)
		go func(i int, m Monitor) {
			defer wg.Done()
			probeCtx, probeSpan := w.tracer.Start(ctx, "watchdog.probe",
				trace.WithAttributes(attribute.String("service", m.Name())))
			defer probeSpan.End()
			// A monitor that panics must not take the round down with it;
			// the slot is filled with an unknown-status snapshot instead.
			defer func() {
				if r := recover(); r != nil {
					results[i] = snapshot(m.Name(), StatusUnknown, time.Now(),
						fmt.Errorf("probe panicked: %v", r), nil)
					probeSpan.SetStatus(codes.Error, "probe panicked")
				}
			}()
			results[i] = m.CheckHealth(probeCtx)
			probeSpan.SetAttributes(attribute.String("status", string(results[i].Status)))
			if !results[i].Healthy() {
				probeSpan.SetStatus(codes.Error, results[i].Error)
			}
		}(i, m)
	}
	wg.Wait()

	w.mu.Lock()
	for _, h := range results {
		ring, ok := w.history[h.Service]
		if !ok {
			ring = newHistoryRing(historyLimit)
			w.history[h.Service] = ring
		}
		ring.push(h)
	}
	w.mu.Unlock()

	out := make(map[string]ServiceHealth, len(results))
	for i, m := range w.monitors {
		out[m.Name()] = results[i]
		w.evaluateAlert(ctx, m, results[i])
	}
	return out
}

// evaluateAlert fires at most one outage alert per episode and a recovery
// notice once a previously alerted service turns healthy again.
func (w *Watchdog) evaluateAlert(ctx context.Context, m Monitor, h ServiceHealth) {
	name := m.Name()

	if m.ShouldAlert() {
		a := alert.Alert{
			Kind:                alert.KindOutage,
			Service:             name,
			Status:              string(h.Status),
			Message:             alertMessage(h, m.ConsecutiveFailures()),
			ConsecutiveFailures: m.ConsecutiveFailures(),
			FiredAt:             time.Now(),
		}
		if err := w.notifier.Notify(ctx, a); err != nil {
			w.logger.Error().Err(err).Str("service", name).Msg("alert delivery failed")
		}
		m.MarkAlerted()

		w.mu.Lock()
		w.alerted[name] = true
		w.mu.Unlock()
		return
	}

	if !h.Healthy() {
		return
	}

	w.mu.Lock()
	wasAlerted := w.alerted[name]
	delete(w.alerted, name)
	w.mu.Unlock()

	if wasAlerted {
		a := alert.Alert{
			Kind:    alert.KindRecovery,
			Service: name,
			Status:  string(h.Status),
			Message: fmt.Sprintf("%s recovered", name),
			FiredAt: time.Now(),
		}
		if err := w.notifier.Notify(ctx, a); err != nil {
			w.logger.Error().Err(err).Str("service", name).Msg("recovery notice delivery failed")
		}
	}
}

func alertMessage(h ServiceHealth, failures int) string {
	if h.Error != "" {
		return fmt.Sprintf("%s failed %d consecutive checks: %s", h.Service, failures, h.Error)
	}
	return fmt.Sprintf("%s failed %d consecutive checks", h.Service, failures)
}

// SystemStatus is the aggregate view returned by the read API.
type SystemStatus struct {
	OverallStatus     HealthStatus             `json:"overall_status"`
	Timestamp         time.Time                `json:"timestamp"`
	Services          map[string]ServiceHealth `json:"services"`
	UnhealthyServices []string                 `json:"unhealthy_services"`
	DegradedServices  []string                 `json:"degraded_services"`
	Config            Config                   `json:"monitoring_config"`
}

// SystemStatus aggregates the most recent snapshot of every service. It is a
// pure read over retained history and never triggers probes. Overall status
// is the worst case: unhealthy beats degraded beats healthy.
func (w *Watchdog) SystemStatus() SystemStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := SystemStatus{
		OverallStatus:     StatusHealthy,
		Timestamp:         time.Now(),
		Services:          make(map[string]ServiceHealth, len(w.monitors)),
		UnhealthyServices: []string{},
		DegradedServices:  []string{},
		Config:            w.cfg,
	}

	for _, m := range w.monitors {
		name := m.Name()
		latest, ok := w.history[name].latest()
		if !ok {
			latest = ServiceHealth{Service: name, Status: StatusUnknown}
		}
		status.Services[name] = latest

		switch latest.Status {
		case StatusUnhealthy:
			status.UnhealthyServices = append(status.UnhealthyServices, name)
			status.OverallStatus = StatusUnhealthy
		case StatusDegraded:
			status.DegradedServices = append(status.DegradedServices, name)
			if status.OverallStatus != StatusUnhealthy {
				status.OverallStatus = StatusDegraded
			}
		}
	}

	sort.Strings(status.UnhealthyServices)
	sort.Strings(status.DegradedServices)
	return status
}

// ServiceHistory returns the retained snapshots for one service whose check
// time falls inside the trailing window, oldest first. An unknown service
// name yields an empty slice, never an error.
func (w *Watchdog) ServiceHistory(service string, window time.Duration) []ServiceHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ring, ok := w.history[service]
	if !ok {
		return []ServiceHealth{}
	}

	cutoff := time.Now().Add(-window)
	out := make([]ServiceHealth, 0, ring.len())
	for _, h := range ring.snapshot() {
		if !h.LastCheck.Before(cutoff) {
			out = append(out, h)
		}
	}
	return out
}

// ServiceNames returns the names of all registered monitors.
func (w *Watchdog) ServiceNames() []string {
	names := make([]string, 0, len(w.monitors))
	for _, m := range w.monitors {
		names = append(names, m.Name())
	}
	sort.Strings(names)
	return names
}

// NextCheckInterval derives the next polling interval from the latest
// recorded status of every service: the relaxed stable interval when all are
// healthy, the tighter check interval otherwise. The decision deliberately
// uses only the single latest observation per service, with no hysteresis.
func (w *Watchdog) NextCheckInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, m := range w.monitors {
		latest, ok := w.history[m.Name()].latest()
		if !ok || !latest.Healthy() {
			return w.cfg.CheckInterval
		}
	}
	return w.cfg.StableInterval
}
