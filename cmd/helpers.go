package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/inovacc/gitvault/internal/notify"
	"gopkg.in/natefinch/lumberjack.v2"
)

// initLogger wires the process-wide structured logger. Logs always go to
// stderr; a log file adds a rotated copy alongside.
func initLogger(level string, jsonFormat bool, logFile string) {
	var lvl slog.Level

	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var out io.Writer = os.Stderr

	if logFile != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// newNotifier builds a dispatcher delivering to the log and, when a webhook
// URL is given, to the webhook. Returns nil when webhookURL is empty so
// callers can skip dispatch entirely.
func newNotifier(webhookURL string) *notify.Dispatcher {
	if webhookURL == "" {
		return nil
	}

	dispatcher := notify.NewDispatcher(slog.Default())
	dispatcher.Register(notify.NewLogSender(slog.Default()))
	dispatcher.Register(notify.NewWebhookSender(webhookURL))

	return dispatcher
}

// promptConfirm asks the user for confirmation and returns true if they confirm
// prompt should include the question (e.g., "Overwrite? [y/N]: ")
func promptConfirm(prompt string) bool {
	_, _ = fmt.Fprint(os.Stdout, prompt)

	var response string

	_, _ = fmt.Scanln(&response)

	return response == "y" || response == "Y"
}

// formatBytes renders a byte count in human-readable units
func formatBytes(n int64) string {
	const unit = 1024

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
