package watchdog

import (
	"context"
	"time"
)

// metricsWindow is how long cycle-level metrics are retained. Entries older
// than the window are pruned by timestamp, not by count.
const metricsWindow = 24 * time.Hour

// CycleMetrics records loop-level performance for one probing cycle.
type CycleMetrics struct {
	Timestamp       time.Time     `json:"timestamp"`
	Duration        time.Duration `json:"duration"`
	HealthyServices int           `json:"healthy_services"`
	TotalServices   int           `json:"total_services"`
	OverallStatus   HealthStatus  `json:"overall_status"`
}

// HealthyRatio returns the healthy/total fraction for the cycle.
func (c CycleMetrics) HealthyRatio() float64 {
	if c.TotalServices == 0 {
		return 0
	}
	return float64(c.HealthyServices) / float64(c.TotalServices)
}

// Run executes the monitoring loop until the context is cancelled. It sleeps
// once for the startup delay, then repeats: probe all systems, record cycle
// metrics, sleep for the adaptively chosen interval. A cycle that fails for
// any reason is logged and followed by the non-adaptive check interval; the
// loop itself never terminates over a single bad cycle.
func (w *Watchdog) Run(ctx context.Context, metrics *Metrics) error {
	if w.cfg.StartupDelay > 0 {
		w.logger.Info().
			Dur("startup_delay", w.cfg.StartupDelay).
			Msg("watchdog waiting before first cycle")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.StartupDelay):
		}
	}

	w.logger.Info().
		Dur("check_interval", w.cfg.CheckInterval).
		Dur("stable_interval", w.cfg.StableInterval).
		Int("monitors", len(w.monitors)).
		Msg("watchdog loop started")

	for {
		interval := w.runCycle(ctx, metrics)

		select {
		case <-ctx.Done():
			w.logger.Info().Msg("watchdog loop stopped")
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// runCycle executes one probing cycle and returns the next sleep interval.
// Panics from the orchestration itself (not from monitors, which contain
// their own) are recovered here so the loop keeps running.
func (w *Watchdog) runCycle(ctx context.Context, metrics *Metrics) (next time.Duration) {
	next = w.cfg.CheckInterval
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Interface("error", r).
				Msg("watchdog cycle failed, falling back to check interval")
			next = w.cfg.CheckInterval
		}
	}()

	start := time.Now()
	results := w.CheckAllSystems(ctx)

	healthy := 0
	for _, h := range results {
		if h.Healthy() {
			healthy++
		}
	}

	cycle := CycleMetrics{
		Timestamp:       start,
		Duration:        time.Since(start),
		HealthyServices: healthy,
		TotalServices:   len(results),
		OverallStatus:   w.SystemStatus().OverallStatus,
	}
	w.recordCycle(cycle)
	metrics.recordCycle(ctx, cycle)

	next = w.NextCheckInterval()

	if w.cfg.LoggingEnabled {
		w.logger.Info().
			Dur("duration", cycle.Duration).
			Int("healthy", healthy).
			Int("total", cycle.TotalServices).
			Str("overall_status", string(cycle.OverallStatus)).
			Dur("next_interval", next).
			Msg("watchdog cycle completed")
	}
	return next
}

// recordCycle appends to the rolling cycle log and prunes entries older than
// the retention window.
func (w *Watchdog) recordCycle(c CycleMetrics) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cycleLog = append(w.cycleLog, c)

	cutoff := time.Now().Add(-metricsWindow)
	firstKept := 0
	for firstKept < len(w.cycleLog) && w.cycleLog[firstKept].Timestamp.Before(cutoff) {
		firstKept++
	}
	if firstKept > 0 {
		w.cycleLog = append([]CycleMetrics(nil), w.cycleLog[firstKept:]...)
	}
}

// RecentCycles returns cycle metrics recorded inside the trailing window,
// oldest first.
func (w *Watchdog) RecentCycles(window time.Duration) []CycleMetrics {
	w.mu.RLock()
	defer w.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	out := make([]CycleMetrics, 0, len(w.cycleLog))
	for _, c := range w.cycleLog {
		if !c.Timestamp.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out
}
