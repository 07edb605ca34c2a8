package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "arbor",
	Short:         "Browse the branches of exported chat conversations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default from LOG_LEVEL)")
	rootCmd.AddCommand(serveCmd, showCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("arbor failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func levelOr(fallback string) string {
	if logLevel != "" {
		return logLevel
	}
	return fallback
}
