package alert

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes alerts to the structured log. It is the always-on sink.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log sink.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the alert. Outages log at error level, recoveries at info.
func (n *LogNotifier) Notify(_ context.Context, a Alert) error {
	evt := n.logger.Error()
	if a.Kind == KindRecovery {
		evt = n.logger.Info()
	}
	evt.
		Str("kind", string(a.Kind)).
		Str("service", a.Service).
		Str("status", a.Status).
		Int("consecutive_failures", a.ConsecutiveFailures).
		Time("fired_at", a.FiredAt).
		Msg(a.Message)
	return nil
}
