package logging

import (
	"log/slog"
)

// SetupMCPMode installs file-only logging for the stdio JSON-RPC server.
// stdout carries the protocol stream and stderr is reserved for the host
// client, so every record goes to the log file and nowhere else. Level is
// debug: the file is the only place per-source timings and fusion stage
// counts can be read back from a serve session.
func SetupMCPMode() (func(), error) {
	return SetupMCPModeWithLevel("debug")
}

// SetupMCPModeWithLevel is SetupMCPMode at an explicit level, for hosts
// that find debug-level retrieval logs too noisy.
func SetupMCPModeWithLevel(level string) (func(), error) {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	slog.Info("serve mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
