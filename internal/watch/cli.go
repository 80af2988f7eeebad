package watch

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"matchpulse/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "watch_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the watch tool.
func ShowHelp() {
	os.Stdout.WriteString(`MatchPulse Watch Tool
=====================

Connects to the live match feed, prints incoming events and verifies
stream invariants: scores never decrease and match status only moves
forward.

Usage:
  go run cmd/watch/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -topic string
        Topic to join: matches, match:{id}, league:{id} or player:{id}
        (default "matches")
  -user string
        Username announced on the topic (default: generated)
  -duration duration
        How long to watch the stream (default 2m)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for watch output (default: watch_log_TIMESTAMP.log)
  -verbose
        Log every received event
  -help
        Show this help message

Examples:
  # Watch the global feed for two minutes
  go run cmd/watch/main.go

  # Follow a single match with full event output
  go run cmd/watch/main.go -topic match:4f1c… -verbose

  # Watch a league feed for ten minutes
  go run cmd/watch/main.go -topic league:premier-league -duration 10m
`)
}
