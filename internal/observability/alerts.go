package observability

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"NewsPipeline/internal/ports"
)

// AlertEvent is one recorded alert.
type AlertEvent struct {
	Workspace string         `json:"workspace"`
	Severity  ports.Severity `json:"severity"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerts logs operational alerts and keeps them for inspection.
type Alerts struct {
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	events []AlertEvent
}

var _ ports.Alerter = (*Alerts)(nil)

// NewAlerts builds an alerting client writing to logger.
func NewAlerts(logger *slog.Logger) *Alerts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerts{logger: logger, now: time.Now}
}

// Alert records the event and logs it at a level matching its severity.
func (a *Alerts) Alert(ctx context.Context, workspace, message string, severity ports.Severity) {
	if severity == "" {
		severity = ports.SeverityCritical
	}
	event := AlertEvent{
		Workspace: workspace,
		Severity:  severity,
		Message:   message,
		Timestamp: a.now().UTC(),
	}

	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()

	level := slog.LevelError
	switch severity {
	case ports.SeverityInfo:
		level = slog.LevelInfo
	case ports.SeverityWarning:
		level = slog.LevelWarn
	}
	a.logger.Log(ctx, level, "pipeline alert",
		"workspace", workspace,
		"severity", severity,
		"alert_message", message)
}

// Events returns a copy of the recorded alerts, oldest first.
func (a *Alerts) Events() []AlertEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.events)
}

// Reset clears the recorded alerts.
func (a *Alerts) Reset() {
	a.mu.Lock()
	a.events = nil
	a.mu.Unlock()
}
