package main

import (
	"context"
	"flag"
	"os"
	"time"

	"matchpulse/internal/watch"

	"github.com/google/uuid"
)

// Default configuration constants.
const (
	defaultDuration     = 2 * time.Minute
	defaultTimeout      = 30 * time.Second
	defaultWatchTimeout = 30 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		topic    = flag.String("topic", "matches", "Topic to join: matches, match:{id}, league:{id} or player:{id}")
		username = flag.String("user", "", "Username announced on the topic (default: generated)")
		duration = flag.Duration("duration", defaultDuration, "How long to watch the stream")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile  = flag.String("log", "", "Log file for watch output (default: watch_log_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Log every received event")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		watch.ShowHelp()
		return
	}

	// Setup logging
	if err := watch.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultWatchTimeout)
	defer cancel()

	user := *username
	if user == "" {
		user = "watch-" + uuid.NewString()[:8]
	}

	// Create watch configuration
	config := &watch.Config{
		BaseURL:  *baseURL,
		Topic:    *topic,
		Username: user,
		Duration: *duration,
		Timeout:  *timeout,
		LogFile:  *logFile,
		Verbose:  *verbose,
	}

	// Run the watch session
	if err := watch.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Watch failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
