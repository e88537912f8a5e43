package device

import "log/slog"

// LogTracker is an eye-tracker stand-in that writes every marker to the log.
type LogTracker struct {
	logger *slog.Logger
	clock  Nower
}

// NewLogTracker creates a tracker writing to logger. clock may be nil.
func NewLogTracker(logger *slog.Logger, clock Nower) *LogTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTracker{logger: logger, clock: clock}
}

// Message logs msg as a marker.
func (t *LogTracker) Message(msg string) {
	if t.clock == nil {
		t.logger.Info("eyetracker", "marker", msg)
		return
	}
	t.logger.Info("eyetracker", "marker", msg, "time", t.clock.Now())
}
