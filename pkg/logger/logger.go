// Package logger builds the structured slog.Logger shared by both
// services, following the same construction Sumukhak22-GopherPay's
// pkg/logger and internal/billing/service.go rely on (a single
// *slog.Logger threaded through constructors, fields attached
// per-call rather than child loggers).
package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger writing to stderr. env selects the
// level: anything other than "production" logs at Debug.
func New(env string) *slog.Logger {
	level := slog.LevelInfo
	if env != "production" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
