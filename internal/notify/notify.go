// Package notify announces the outcome of autonomous reconciliation
// passes. The default implementation logs; the interface leaves room for
// a desktop notifier without touching the engine.
package notify

import (
	"log/slog"
)

// Notifier receives announcements about autonomous sync activity.
type Notifier interface {
	Notify(title, message string)
}

// Nop discards all notifications. Used when notifications are disabled.
type Nop struct{}

func (Nop) Notify(string, string) {}

// Logged writes notifications through the structured logger.
type Logged struct {
	logger *slog.Logger
}

// NewLogged creates a log-backed notifier.
func NewLogged(logger *slog.Logger) *Logged {
	return &Logged{logger: logger}
}

func (n *Logged) Notify(title, message string) {
	n.logger.Info("notification",
		slog.String("title", title),
		slog.String("message", message),
	)
}

// FromConfig returns the notifier matching the notificationsEnabled
// option.
func FromConfig(enabled bool, logger *slog.Logger) Notifier {
	if !enabled {
		return Nop{}
	}

	return NewLogged(logger)
}
