// Package notify defines the notification-sink port (spec §1: "notification
// sink" external collaborator). Email/push delivery internals are out of
// scope for this repository's core; every component that needs to tell a
// user something (topup_failed, strike issued, dispute resolved, payout
// paid) depends only on this narrow interface.
package notify

import (
	"context"
	"log/slog"
)

// Sink delivers a notification of kind to userID carrying data. The core
// never calls this synchronously inside a rolled-back transaction: per the
// error-handling design, notifications are only emitted after the
// transaction that produced them has committed.
type Sink interface {
	Notify(ctx context.Context, userID int64, kind string, data map[string]string) error
}

// LoggingSink is a Sink that writes structured log lines instead of
// delivering anything — the default wired in cmd/server until a real
// delivery backend (email/push provider) is plugged in, keeping the core
// fully functional without one.
type LoggingSink struct {
	logger *slog.Logger
}

func NewLoggingSink(logger *slog.Logger) *LoggingSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSink{logger: logger}
}

var _ Sink = (*LoggingSink)(nil)

func (s *LoggingSink) Notify(_ context.Context, userID int64, kind string, data map[string]string) error {
	args := make([]any, 0, len(data)*2+2)
	args = append(args, "user_id", userID, "kind", kind)
	for k, v := range data {
		args = append(args, k, v)
	}
	s.logger.Info("notification", args...)
	return nil
}
