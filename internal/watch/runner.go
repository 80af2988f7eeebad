package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"matchpulse/pkg/logger"

	"golang.org/x/net/websocket"
)

// joinFrame mirrors the subscribe request the WebSocket endpoint accepts.
type joinFrame struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	MatchID  string `json:"matchId,omitempty"`
	LeagueID string `json:"leagueId,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}

// Run executes a complete watch session: health check, join, observe,
// verify, report.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting matchpulse watch",
		logger.String("baseURL", config.BaseURL),
		logger.String("topic", config.Topic),
		logger.String("username", config.Username),
		logger.String("duration", config.Duration.String()),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Connect and join the topic
	conn, err := dial(config)
	if err != nil {
		return fmt.Errorf("websocket connect failed: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Get().Warn(context.Background(), "failed to close websocket", logger.Error(err))
		}
	}()

	join, err := frameForTopic(config.Topic, config.Username)
	if err != nil {
		return err
	}
	if err := websocket.JSON.Send(conn, join); err != nil {
		return fmt.Errorf("join request failed: %w", err)
	}

	// Step 3: Observe the stream until the duration elapses
	verifier := NewVerifier()
	if err := observe(ctx, config, conn, verifier, stats); err != nil {
		return fmt.Errorf("stream observation failed: %w", err)
	}

	// Step 4: Report
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	stats.MatchesSeen = verifier.MatchesSeen()
	stats.Violations = len(verifier.Violations())

	for _, line := range verifier.FinalScores() {
		logger.Get().Info(ctx, "final state", logger.String("match", line))
	}
	for _, violation := range verifier.Violations() {
		logger.Get().Error(ctx, "stream invariant violated", logger.String("violation", violation))
	}

	displayFinalStats(stats)

	if stats.Violations > 0 {
		return fmt.Errorf("stream verification failed: %d violation(s)", stats.Violations)
	}
	logger.Get().Info(ctx, "watch completed; stream invariants hold")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := &http.Client{Timeout: config.Timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.BaseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Any 200 counts as healthy; the endpoint serves Prometheus metrics.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// dial opens the WebSocket connection to the service feed.
func dial(config *Config) (*websocket.Conn, error) {
	wsURL := strings.Replace(config.BaseURL, "http", "ws", 1) + "/ws"
	return websocket.Dial(wsURL, "", config.BaseURL)
}

// frameForTopic translates a topic name into the join request shape.
func frameForTopic(topic, username string) (joinFrame, error) {
	frame := joinFrame{Type: "join", Username: username}
	switch {
	case topic == "" || topic == "matches":
		return frame, nil
	case strings.HasPrefix(topic, "match:"):
		frame.MatchID = strings.TrimPrefix(topic, "match:")
	case strings.HasPrefix(topic, "league:"):
		frame.LeagueID = strings.TrimPrefix(topic, "league:")
	case strings.HasPrefix(topic, "player:"):
		frame.PlayerID = strings.TrimPrefix(topic, "player:")
	default:
		return frame, fmt.Errorf("unknown topic %q", topic)
	}
	return frame, nil
}

// observe reads events until the watch duration elapses or the context
// is cancelled, feeding each one to the verifier.
func observe(ctx context.Context, config *Config, conn *websocket.Conn, verifier *Verifier, stats *Stats) error {
	deadline := time.Now().Add(config.Duration)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set read deadline: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		var ev WireEvent
		if err := websocket.JSON.Receive(conn, &ev); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil // watch window over
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Get().Warn(ctx, "connection closed by service")
				return nil
			}
			return fmt.Errorf("receive failed: %w", err)
		}

		stats.EventsReceived++
		switch ev.Type {
		case "GOAL":
			stats.Goals++
		case "HALF_TIME":
			stats.HalfTimes++
		case "MATCH_COMPLETED":
			stats.Completions++
		case "STATUS_CHANGED":
			stats.StatusChanges++
		case "USER_JOINED", "USER_LEFT":
			stats.Memberships++
		case "CHAT_MESSAGE":
			stats.ChatMessages++
		case "ERROR":
			stats.ErrorsReceived++
			logger.Get().Warn(ctx, "service rejected a request", logger.String("message", ev.Message))
		}

		verifier.Observe(ev)

		if config.Verbose {
			logEvent(ctx, ev)
		}
	}
}

func logEvent(ctx context.Context, ev WireEvent) {
	switch ev.Type {
	case "USER_JOINED", "USER_LEFT":
		logger.Get().Info(ctx, "membership",
			logger.String("type", ev.Type),
			logger.String("username", ev.Username),
			logger.String("topic", ev.Topic))
	case "ERROR":
		logger.Get().Info(ctx, "error frame", logger.String("message", ev.Message))
	default:
		logger.Get().Info(ctx, "match event",
			logger.String("type", ev.Type),
			logger.String("matchId", ev.MatchID),
			logger.String("score", fmt.Sprintf("%d-%d", ev.HomeScore, ev.AwayScore)),
			logger.String("status", ev.Status),
			logger.Int("elapsedMinute", ev.ElapsedMinute))
	}
}

// displayFinalStats prints the final watch statistics.
func displayFinalStats(stats *Stats) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsReceived) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("eventsReceived", stats.EventsReceived),
		logger.Int("goals", stats.Goals),
		logger.Int("halfTimes", stats.HalfTimes),
		logger.Int("completions", stats.Completions),
		logger.Int("statusChanges", stats.StatusChanges),
		logger.Int("memberships", stats.Memberships),
		logger.Int("chatMessages", stats.ChatMessages),
		logger.Int("errorsReceived", stats.ErrorsReceived),
		logger.Int("matchesSeen", stats.MatchesSeen),
		logger.Int("violations", stats.Violations),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
