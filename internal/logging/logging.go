package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where and how much the service logs.
type Config struct {
	// Level is the minimum level emitted (debug, info, warn, error).
	Level string
	// FilePath is the log file destination. Empty disables file logging.
	FilePath string
	// MaxSizeMB caps the file size before rotation.
	MaxSizeMB int
	// MaxFiles caps how many rotated files are kept.
	MaxFiles int
	// WriteToStderr mirrors every record to stderr. Must stay off while
	// the process speaks JSON-RPC on stdio.
	WriteToStderr bool
}

// DefaultConfig returns the file-logging defaults used by the CLI commands.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig at debug level. Used by the --debug flag so
// per-source timings and fusion stage counts land in the log.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup wires a JSON slog.Logger onto a rotating file writer. The returned
// cleanup flushes and closes the file; callers defer it for the process
// lifetime.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if err := EnsureLogDir(); err != nil {
		return nil, nil, err
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var output io.Writer = writer
	if cfg.WriteToStderr {
		output = io.MultiWriter(writer, os.Stderr)
	}

	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}))

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return logger, cleanup, nil
}

// SetupDefault installs a debug-level file logger as the process default and
// returns its cleanup.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(DebugConfig())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString maps a level name to slog.Level; unknown names fall back
// to info. The log viewer uses it for its --level filter.
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}
