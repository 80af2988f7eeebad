// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// Kind tags each domain event variant on the wire.
type Kind string

// Domain event kinds.
const (
	KindLiveStarted   Kind = "MATCH_LIVE_STARTED"
	KindGoal          Kind = "GOAL"
	KindHalfTime      Kind = "HALF_TIME"
	KindCompleted     Kind = "MATCH_COMPLETED"
	KindStatusChanged Kind = "STATUS_CHANGED"
	KindUserJoined    Kind = "USER_JOINED"
	KindUserLeft      Kind = "USER_LEFT"
	KindChatMessage   Kind = "CHAT_MESSAGE"
	KindError         Kind = "ERROR"
)

// Topic names. Subscriber compatibility depends on these exact shapes.
const TopicMatches = "matches"

// MatchTopic returns the per-match topic name.
func MatchTopic(id string) string { return "match:" + id }

// LeagueTopic returns the per-league topic name.
func LeagueTopic(id string) string { return "league:" + id }

// PlayerTopic returns the per-player topic name.
func PlayerTopic(id string) string { return "player:" + id }

// Event is implemented by every payload flowing through the distributor.
// Events are immutable once constructed; the scheduler hands them to the
// broker by value and never touches them again.
type Event interface {
	Kind() Kind
	Topics() []string
}

// MatchSnapshot carries the shared wire fields of all match-lifecycle
// events: {type, matchId, homeTeam, awayTeam, homeScore, awayScore,
// status, elapsedMinute, timestamp}.
type MatchSnapshot struct {
	Type          Kind        `json:"type"`
	MatchID       string      `json:"matchId"`
	HomeTeam      string      `json:"homeTeam"`
	AwayTeam      string      `json:"awayTeam"`
	HomeScore     int         `json:"homeScore"`
	AwayScore     int         `json:"awayScore"`
	Status        MatchStatus `json:"status"`
	ElapsedMinute int         `json:"elapsedMinute"`
	LeagueID      string      `json:"leagueId,omitempty"`
	PlayerID      string      `json:"playerId,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Kind returns the wire tag of the event.
func (s MatchSnapshot) Kind() Kind { return s.Type }

// Topics resolves the broadcast channels this event maps to: always the
// global feed and the per-match topic, plus league/player topics when the
// event carries those associations.
func (s MatchSnapshot) Topics() []string {
	topics := []string{TopicMatches, MatchTopic(s.MatchID)}
	if s.LeagueID != "" {
		topics = append(topics, LeagueTopic(s.LeagueID))
	}
	if s.PlayerID != "" {
		topics = append(topics, PlayerTopic(s.PlayerID))
	}
	return topics
}

func snapshotFor(kind Kind, m Match, elapsed int, ts time.Time) MatchSnapshot {
	return MatchSnapshot{
		Type:          kind,
		MatchID:       m.ID,
		HomeTeam:      m.HomeTeam,
		AwayTeam:      m.AwayTeam,
		HomeScore:     m.HomeScore,
		AwayScore:     m.AwayScore,
		Status:        m.Status,
		ElapsedMinute: elapsed,
		LeagueID:      m.LeagueID,
		Timestamp:     ts,
	}
}

// LiveStarted announces the first tick of a match inside the progression
// window.
type LiveStarted struct{ MatchSnapshot }

// NewLiveStarted builds a LiveStarted event from the persisted match.
func NewLiveStarted(m Match, elapsed int, ts time.Time) LiveStarted {
	return LiveStarted{snapshotFor(KindLiveStarted, m, elapsed, ts)}
}

// Goal carries the updated score pair after one side scored.
type Goal struct{ MatchSnapshot }

// NewGoal builds a Goal event from the persisted match.
func NewGoal(m Match, elapsed int, ts time.Time) Goal {
	return Goal{snapshotFor(KindGoal, m, elapsed, ts)}
}

// HalfTime marks the 45-50 minute window; emitted at most once per match.
type HalfTime struct{ MatchSnapshot }

// NewHalfTime builds a HalfTime event from the persisted match.
func NewHalfTime(m Match, elapsed int, ts time.Time) HalfTime {
	return HalfTime{snapshotFor(KindHalfTime, m, elapsed, ts)}
}

// Completed announces the final whistle and the frozen score.
type Completed struct{ MatchSnapshot }

// NewCompleted builds a Completed event from the persisted match.
func NewCompleted(m Match, elapsed int, ts time.Time) Completed {
	return Completed{snapshotFor(KindCompleted, m, elapsed, ts)}
}

// StatusChanged reports an administrative status override.
type StatusChanged struct{ MatchSnapshot }

// NewStatusChanged builds a StatusChanged event from the persisted match.
func NewStatusChanged(m Match, elapsed int, ts time.Time) StatusChanged {
	return StatusChanged{snapshotFor(KindStatusChanged, m, elapsed, ts)}
}

// Membership carries the shared wire fields of join/leave notifications:
// {type, username, topic, message, timestamp}.
type Membership struct {
	Type      Kind      `json:"type"`
	Username  string    `json:"username"`
	Topic     string    `json:"topic"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Kind returns the wire tag of the event.
func (m Membership) Kind() Kind { return m.Type }

// Topics routes membership events to the affected topic only.
func (m Membership) Topics() []string { return []string{m.Topic} }

// NewUserJoined builds the join acknowledgement broadcast to the topic.
func NewUserJoined(username, topic string, ts time.Time) Membership {
	return Membership{
		Type:      KindUserJoined,
		Username:  username,
		Topic:     topic,
		Message:   fmt.Sprintf("%s joined %s live updates", username, topic),
		Timestamp: ts,
	}
}

// NewUserLeft builds the leave acknowledgement broadcast to the topic.
func NewUserLeft(username, topic string, ts time.Time) Membership {
	return Membership{
		Type:      KindUserLeft,
		Username:  username,
		Topic:     topic,
		Message:   fmt.Sprintf("%s left %s live updates", username, topic),
		Timestamp: ts,
	}
}

// ChatMessage relays one user's message to a match room. Chat is
// fan-out only: messages are not persisted and reach current members of
// the match topic, nobody else.
type ChatMessage struct {
	Type      Kind      `json:"type"`
	Username  string    `json:"username"`
	MatchID   string    `json:"matchId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Kind returns the wire tag of the event.
func (c ChatMessage) Kind() Kind { return c.Type }

// Topics routes chat to the match room only, never the global feed.
func (c ChatMessage) Topics() []string { return []string{MatchTopic(c.MatchID)} }

// NewChatMessage builds a chat relay event.
func NewChatMessage(username, matchID, message string, ts time.Time) ChatMessage {
	return ChatMessage{
		Type:      KindChatMessage,
		Username:  username,
		MatchID:   matchID,
		Message:   message,
		Timestamp: ts,
	}
}

// ErrorEvent is a typed rejection returned to the session that sent a
// malformed request. It is delivered directly, never broadcast.
type ErrorEvent struct {
	Type      Kind      `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Kind returns the wire tag of the event.
func (e ErrorEvent) Kind() Kind { return e.Type }

// Topics is empty: error events go back to the originating session only.
func (e ErrorEvent) Topics() []string { return nil }

// NewErrorEvent builds a typed error acknowledgement.
func NewErrorEvent(message string, ts time.Time) ErrorEvent {
	return ErrorEvent{Type: KindError, Message: message, Timestamp: ts}
}
