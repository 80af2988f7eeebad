package watch

import "time"

// Config holds configuration for a watch session
type Config struct {
	BaseURL  string        // Base URL of the service
	Topic    string        // Topic to join: "matches", "match:{id}", "league:{id}" or "player:{id}"
	Username string        // Username announced to the topic
	Duration time.Duration // How long to observe the stream
	Timeout  time.Duration // HTTP request timeout
	LogFile  string        // Log file for watch output
	Verbose  bool          // Log every received event
}

// WireEvent is the union of all frames the service pushes to a session.
// Match lifecycle events fill the match fields; membership notifications
// fill username/topic/message; errors fill message only.
type WireEvent struct {
	Type          string    `json:"type"`
	MatchID       string    `json:"matchId,omitempty"`
	HomeTeam      string    `json:"homeTeam,omitempty"`
	AwayTeam      string    `json:"awayTeam,omitempty"`
	HomeScore     int       `json:"homeScore,omitempty"`
	AwayScore     int       `json:"awayScore,omitempty"`
	Status        string    `json:"status,omitempty"`
	ElapsedMinute int       `json:"elapsedMinute,omitempty"`
	LeagueID      string    `json:"leagueId,omitempty"`
	PlayerID      string    `json:"playerId,omitempty"`
	Username      string    `json:"username,omitempty"`
	Topic         string    `json:"topic,omitempty"`
	Message       string    `json:"message,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
}

// Stats holds watch session statistics
type Stats struct {
	EventsReceived int
	Goals          int
	HalfTimes      int
	Completions    int
	StatusChanges  int
	Memberships    int
	ChatMessages   int
	ErrorsReceived int
	MatchesSeen    int
	Violations     int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
