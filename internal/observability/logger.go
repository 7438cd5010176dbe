package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/couchcryptid/civic-risk-etl/internal/config"
)

// NewLogger builds the process logger from config. Every record carries a
// run_id so log lines from concurrent or overlapping runs can be separated;
// the id never appears in output tables.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler).With("run_id", uuid.NewString())
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
