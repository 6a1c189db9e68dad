package notify

import (
	"context"
	"log/slog"
)

// LogSender writes events to the structured log. It is always registered so
// scheduled runs leave a delivery trace even without a webhook configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, event *Event) error {
	s.logger.Info("pipeline event",
		slog.String("type", event.Type),
		slog.String("repository", event.Repository),
		slog.Int("succeeded", event.Succeeded),
		slog.Int("failed", event.Failed),
		slog.Bool("success", event.Success),
		slog.String("error", event.Error),
	)

	return nil
}
