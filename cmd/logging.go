package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const logFileMode = 0o600

func (a *app) setupLogging(stderr io.Writer, logFile string, verbose bool) error {
	level := parseLogLevel(a.cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}

	out := stderr
	a.logToFile = false
	a.closeLog = func() error { return nil }
	if path := strings.TrimSpace(logFile); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFileMode)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = f
		a.logToFile = true
		a.closeLog = f.Close
	}

	a.logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	return nil
}

func parseLogLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
