package notifier

import (
	"context"
	"log/slog"
)

// Log is the fallback notifier used when no delivery channel is configured.
// Alerts still show up in the daemon's log, and the rest of the pipeline
// (dedup, throttle, state bookkeeping) behaves exactly as with a real channel.
type Log struct{}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Deliver(ctx context.Context, n Notification) error {
	slog.Info("Notification (no delivery channel configured)",
		"title", n.Title,
		"body", n.Body,
		"stable_id", n.StableID)
	return nil
}

func (l *Log) Retract(ctx context.Context, stableID string) error {
	slog.Info("Notification retracted", "stable_id", stableID)
	return nil
}
