package watchdog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragpilot/ragpilot/internal/alert"
	"github.com/ragpilot/ragpilot/internal/watchdog"
)

// scriptedMonitor implements watchdog.Monitor with a programmable probe.
type scriptedMonitor struct {
	name  string
	probe func(ctx context.Context) watchdog.ServiceHealth

	mu        sync.Mutex
	failures  int
	alertSent bool
	threshold int
}

func newScriptedMonitor(name string, threshold int, probe func(ctx context.Context) watchdog.ServiceHealth) *scriptedMonitor {
	return &scriptedMonitor{name: name, threshold: threshold, probe: probe}
}

func (m *scriptedMonitor) Name() string { return m.name }

func (m *scriptedMonitor) CheckHealth(ctx context.Context) watchdog.ServiceHealth {
	h := m.probe(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.Healthy() {
		m.failures = 0
		m.alertSent = false
	} else {
		m.failures++
	}
	return h
}

func (m *scriptedMonitor) ShouldAlert() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures >= m.threshold && !m.alertSent
}

func (m *scriptedMonitor) MarkAlerted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertSent = true
}

func (m *scriptedMonitor) ConsecutiveFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

func healthyProbe(service string) func(ctx context.Context) watchdog.ServiceHealth {
	return func(context.Context) watchdog.ServiceHealth {
		return watchdog.ServiceHealth{
			Service:   service,
			Status:    watchdog.StatusHealthy,
			LastCheck: time.Now(),
		}
	}
}

func failingProbe(service, errMsg string) func(ctx context.Context) watchdog.ServiceHealth {
	return func(context.Context) watchdog.ServiceHealth {
		return watchdog.ServiceHealth{
			Service:   service,
			Status:    watchdog.StatusUnhealthy,
			LastCheck: time.Now(),
			Error:     errMsg,
		}
	}
}

// captureNotifier records every delivered alert.
type captureNotifier struct {
	mu     sync.Mutex
	alerts []alert.Alert
	err    error
}

func (n *captureNotifier) Notify(_ context.Context, a alert.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return n.err
}

func (n *captureNotifier) delivered() []alert.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]alert.Alert, len(n.alerts))
	copy(out, n.alerts)
	return out
}

func newTestWatchdog(notifier alert.Notifier, monitors ...watchdog.Monitor) *watchdog.Watchdog {
	cfg := watchdog.DefaultConfig()
	cfg.StartupDelay = 0
	cfg.AlertThreshold = 3
	return watchdog.New(watchdog.Options{
		Config:   cfg,
		Logger:   zerolog.Nop(),
		Notifier: notifier,
		Monitors: monitors,
	})
}

func TestCheckAllSystems_OneResultPerMonitor(t *testing.T) {
	w := newTestWatchdog(&captureNotifier{},
		newScriptedMonitor("redis", 3, healthyProbe("redis")),
		newScriptedMonitor("vectordb", 3, failingProbe("vectordb", "down")),
	)

	results := w.CheckAllSystems(context.Background())

	require.Len(t, results, 2)
	assert.Equal(t, watchdog.StatusHealthy, results["redis"].Status)
	assert.Equal(t, watchdog.StatusUnhealthy, results["vectordb"].Status)
}

func TestCheckAllSystems_PanicIsIsolated(t *testing.T) {
	panicking := newScriptedMonitor("vectordb", 3, func(context.Context) watchdog.ServiceHealth {
		panic("probe exploded")
	})
	w := newTestWatchdog(&captureNotifier{},
		newScriptedMonitor("redis", 3, healthyProbe("redis")),
		panicking,
	)

	results := w.CheckAllSystems(context.Background())

	require.Len(t, results, 2)
	assert.Equal(t, watchdog.StatusHealthy, results["redis"].Status,
		"a panicking monitor must not affect the others")
	assert.Equal(t, watchdog.StatusUnknown, results["vectordb"].Status)
	assert.Contains(t, results["vectordb"].Error, "probe panicked")
}

func TestSystemStatus_BeforeFirstCycle(t *testing.T) {
	w := newTestWatchdog(&captureNotifier{},
		newScriptedMonitor("redis", 3, healthyProbe("redis")),
	)

	status := w.SystemStatus()

	assert.Equal(t, watchdog.StatusHealthy, status.OverallStatus)
	require.Contains(t, status.Services, "redis")
	assert.Equal(t, watchdog.StatusUnknown, status.Services["redis"].Status)
	assert.Empty(t, status.UnhealthyServices)
	assert.Empty(t, status.DegradedServices)
}

func TestSystemStatus_WorstCaseAggregation(t *testing.T) {
	degraded := newScriptedMonitor("embeddings", 3, func(context.Context) watchdog.ServiceHealth {
		return watchdog.ServiceHealth{
			Service:   "embeddings",
			Status:    watchdog.StatusDegraded,
			LastCheck: time.Now(),
		}
	})
	w := newTestWatchdog(&captureNotifier{},
		newScriptedMonitor("redis", 3, healthyProbe("redis")),
		degraded,
		newScriptedMonitor("ollama", 3, failingProbe("ollama", "down")),
	)

	w.CheckAllSystems(context.Background())
	status := w.SystemStatus()

	assert.Equal(t, watchdog.StatusUnhealthy, status.OverallStatus,
		"unhealthy must dominate degraded")
	assert.Equal(t, []string{"ollama"}, status.UnhealthyServices)
	assert.Equal(t, []string{"embeddings"}, status.DegradedServices)
}

func TestSystemStatus_DegradedOnly(t *testing.T) {
	degraded := newScriptedMonitor("embeddings", 3, func(context.Context) watchdog.ServiceHealth {
		return watchdog.ServiceHealth{
			Service:   "embeddings",
			Status:    watchdog.StatusDegraded,
			LastCheck: time.Now(),
		}
	})
	w := newTestWatchdog(&captureNotifier{},
		newScriptedMonitor("redis", 3, healthyProbe("redis")),
		degraded,
	)

	w.CheckAllSystems(context.Background())
	status := w.SystemStatus()

	assert.Equal(t, watchdog.StatusDegraded, status.OverallStatus)
}

func TestSystemStatus_NeverTriggersProbes(t *testing.T) {
	var probes int
	counting := newScriptedMonitor("redis", 3, func(context.Context) watchdog.ServiceHealth {
		probes++
		return healthyProbe("redis")(context.Background())
	})
	w := newTestWatchdog(&captureNotifier{}, counting)

	w.CheckAllSystems(context.Background())
	w.SystemStatus()
	w.SystemStatus()

	assert.Equal(t, 1, probes, "reads must not probe")
}

func TestServiceHistory(t *testing.T) {
	w := newTestWatchdog(&captureNotifier{},
		newScriptedMonitor("redis", 3, healthyProbe("redis")),
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		w.CheckAllSystems(ctx)
	}

	history := w.ServiceHistory("redis", time.Hour)
	require.Len(t, history, 3)
	// Oldest first.
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].LastCheck.Before(history[i-1].LastCheck))
	}

	assert.Empty(t, w.ServiceHistory("redis", 0))
}

func TestServiceHistory_CappedAtLimit(t *testing.T) {
	w := newTestWatchdog(&captureNotifier{},
		newScriptedMonitor("redis", 3, healthyProbe("redis")),
	)
	ctx := context.Background()

	for i := 0; i < 110; i++ {
		w.CheckAllSystems(ctx)
	}

	history := w.ServiceHistory("redis", time.Hour)
	assert.Len(t, history, 100, "retained history must stay capped")
}

func TestServiceHistory_UnknownService(t *testing.T) {
	w := newTestWatchdog(&captureNotifier{},
		newScriptedMonitor("redis", 3, healthyProbe("redis")),
	)

	history := w.ServiceHistory("nope", time.Hour)

	require.NotNil(t, history, "unknown services yield an empty slice, not nil")
	assert.Empty(t, history)
}

func TestNextCheckInterval(t *testing.T) {
	down := false
	flappy := newScriptedMonitor("redis", 3, func(context.Context) watchdog.ServiceHealth {
		if down {
			return failingProbe("redis", "down")(context.Background())
		}
		return healthyProbe("redis")(context.Background())
	})
	w := newTestWatchdog(&captureNotifier{}, flappy)
	ctx := context.Background()
	cfg := w.Config()

	// No history yet: stay on the tight interval.
	assert.Equal(t, cfg.CheckInterval, w.NextCheckInterval())

	w.CheckAllSystems(ctx)
	assert.Equal(t, cfg.StableInterval, w.NextCheckInterval(),
		"all healthy relaxes the interval")

	// A single bad observation drops straight back; only the latest
	// observation counts.
	down = true
	w.CheckAllSystems(ctx)
	assert.Equal(t, cfg.CheckInterval, w.NextCheckInterval())

	down = false
	w.CheckAllSystems(ctx)
	assert.Equal(t, cfg.StableInterval, w.NextCheckInterval(),
		"a single healthy observation relaxes again, no hysteresis")
}

func TestAlerting_OneAlertPerEpisode(t *testing.T) {
	notifier := &captureNotifier{}
	failing := newScriptedMonitor("ollama", 3, failingProbe("ollama", "connection refused"))
	w := newTestWatchdog(notifier,
		newScriptedMonitor("redis", 3, healthyProbe("redis")),
		failing,
	)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		w.CheckAllSystems(ctx)
	}

	alerts := notifier.delivered()
	require.Len(t, alerts, 1, "one outage must produce exactly one alert")
	a := alerts[0]
	assert.Equal(t, alert.KindOutage, a.Kind)
	assert.Equal(t, "ollama", a.Service)
	assert.Equal(t, 3, a.ConsecutiveFailures)
	assert.Contains(t, a.Message, "connection refused")
	assert.Contains(t, a.Message, "3 consecutive checks")
}

// slowNotifier records alerts after a delivery delay, widening the window in
// which an overlapping round could observe an unlatched streak.
type slowNotifier struct {
	captureNotifier
	delay time.Duration
}

func (n *slowNotifier) Notify(ctx context.Context, a alert.Alert) error {
	time.Sleep(n.delay)
	return n.captureNotifier.Notify(ctx, a)
}

func TestAlerting_ConcurrentRoundsSingleAlert(t *testing.T) {
	notifier := &slowNotifier{delay: 50 * time.Millisecond}
	failing := newScriptedMonitor("ollama", 1, failingProbe("ollama", "down"))
	w := newTestWatchdog(notifier, failing)
	ctx := context.Background()

	// An on-demand round racing the scheduled one must queue behind it, not
	// observe the streak before the first round latches the alert.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.CheckAllSystems(ctx)
		}()
	}
	wg.Wait()

	alerts := notifier.delivered()
	require.Len(t, alerts, 1, "overlapping rounds must not duplicate the episode alert")
	assert.Equal(t, alert.KindOutage, alerts[0].Kind)
}

func TestAlerting_RecoveryNotice(t *testing.T) {
	notifier := &captureNotifier{}
	down := true
	flappy := newScriptedMonitor("redis", 3, func(context.Context) watchdog.ServiceHealth {
		if down {
			return failingProbe("redis", "down")(context.Background())
		}
		return healthyProbe("redis")(context.Background())
	})
	w := newTestWatchdog(notifier, flappy)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		w.CheckAllSystems(ctx)
	}
	down = false
	w.CheckAllSystems(ctx)

	alerts := notifier.delivered()
	require.Len(t, alerts, 2)
	assert.Equal(t, alert.KindOutage, alerts[0].Kind)
	assert.Equal(t, alert.KindRecovery, alerts[1].Kind)
	assert.Equal(t, "redis", alerts[1].Service)
}

func TestAlerting_NoRecoveryNoticeWithoutAlert(t *testing.T) {
	notifier := &captureNotifier{}
	down := true
	flappy := newScriptedMonitor("redis", 3, func(context.Context) watchdog.ServiceHealth {
		if down {
			return failingProbe("redis", "down")(context.Background())
		}
		return healthyProbe("redis")(context.Background())
	})
	w := newTestWatchdog(notifier, flappy)
	ctx := context.Background()

	// Two failures stay below the threshold, so the recovery is silent too.
	w.CheckAllSystems(ctx)
	w.CheckAllSystems(ctx)
	down = false
	w.CheckAllSystems(ctx)

	assert.Empty(t, notifier.delivered())
}

func TestAlerting_DeliveryFailureDoesNotBreakTheCycle(t *testing.T) {
	notifier := &captureNotifier{err: errors.New("sink down")}
	failing := newScriptedMonitor("ollama", 3, failingProbe("ollama", "down"))
	w := newTestWatchdog(notifier, failing)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		w.CheckAllSystems(ctx)
	}

	// The alert still counts as fired: the episode is latched even though
	// delivery failed.
	assert.Len(t, notifier.delivered(), 1)
}

func TestServiceNames(t *testing.T) {
	w := newTestWatchdog(&captureNotifier{},
		newScriptedMonitor("vectordb", 3, healthyProbe("vectordb")),
		newScriptedMonitor("redis", 3, healthyProbe("redis")),
	)

	assert.Equal(t, []string{"redis", "vectordb"}, w.ServiceNames())
}
