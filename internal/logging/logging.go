package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps LOG_LEVEL style names onto slog levels. Unknown names fall
// back to def.
func ParseLevel(name string, def slog.Level) slog.Level {
	switch strings.ToLower(name) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}

// New builds a logger writing to w and installs it as the slog default.
// format "json" selects the JSON handler, anything else the text handler.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level, slog.LevelInfo)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Init configures the CLI logger from LOG_LEVEL. The default only shows
// errors so diagnostics don't interleave with the terminal UI.
func Init() {
	lvl, _ := os.LookupEnv("LOG_LEVEL")
	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: ParseLevel(lvl, slog.LevelError),
		}),
	)
	slog.SetDefault(logger)
}
