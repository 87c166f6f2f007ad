package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. JSON output keeps log lines
// machine-parseable for the collector.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
