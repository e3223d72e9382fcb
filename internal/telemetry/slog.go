package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// logLevel backs the default logger so the level can change after startup
// (config hot reload) without rebuilding the handler.
var logLevel = new(slog.LevelVar)

// ParseLevel maps a configuration string onto a slog level.
//
// level: "debug", "info", "warn", "error" (case-insensitive); anything else is "info".
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger configures the global slog default logger based on the supplied format and level
// strings read from application configuration.
//
// format: "json"  → JSONHandler (machine readable; recommended for production)
//
//	anything else → TextHandler (human readable; suitable for local development)
//
// The configured logger is installed as the default so all slog.Info/Warn/Error calls elsewhere
// in the portal automatically use it without needing to carry a *slog.Logger in context.
func SetupLogger(format, level string) {
	setupLogger(os.Stdout, format, level)
}

func setupLogger(w io.Writer, format, level string) {
	lvl := ParseLevel(level)
	logLevel.Set(lvl)

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialised", "format", format, "level", lvl.String())
}

// SetLogLevel changes the level of the logger installed by SetupLogger.
// It returns true when the level actually changed.
func SetLogLevel(level string) bool {
	lvl := ParseLevel(level)
	if logLevel.Level() == lvl {
		return false
	}
	logLevel.Set(lvl)
	slog.Info("log level changed", "level", lvl.String())
	return true
}

// LogLevel reports the current level of the default logger.
func LogLevel() slog.Level {
	return logLevel.Level()
}
