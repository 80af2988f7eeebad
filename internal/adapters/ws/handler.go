// Package ws exposes the live feed over a websocket endpoint.
//
// Clients drive subscriptions with small JSON control frames:
//
//	{"type": "join", "username": "alice", "matchId": "42"}
//	{"type": "leave", "leagueId": "premier-league"}
//	{"type": "chat", "matchId": "42", "message": "what a goal"}
//
// A frame names at most one of matchId, leagueId or playerId; naming
// none targets the global match feed. Chat frames must name a matchId
// and are relayed to that match room. Everything flowing the other way
// is a domain event encoded as JSON.
package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"matchpulse/internal/adapters/broker"
	"matchpulse/internal/domain/model"
	"matchpulse/pkg/logger"
)

const maxDecodeErrorsPerConn = 5

type frame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	MatchID  string `json:"matchId"`
	LeagueID string `json:"leagueId"`
	PlayerID string `json:"playerId"`
	Message  string `json:"message"`
}

// Handler upgrades connections and runs the control frame loop.
type Handler struct {
	broker *broker.Broker
	now    func() time.Time
	log    logger.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithNow overrides the clock used for error event timestamps.
func WithNow(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler creates the websocket handler over the given broker.
func NewHandler(b *broker.Broker, opts ...Option) *Handler {
	h := &Handler{
		broker: b,
		now:    time.Now,
		log:    logger.Get().Named("ws"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and hands it to the frame loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	websocket.Handler(h.handleConn).ServeHTTP(w, r)
}

func (h *Handler) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := context.Background()
	if r := conn.Request(); r != nil {
		ctx = r.Context()
	}

	sess := newSession(uuid.NewString(), conn)
	defer h.broker.Disconnect(sess)

	h.log.Debug(ctx, "session connected", logger.String("session_id", sess.ID()))

	decodeErrors := 0
	for {
		var f frame
		if err := websocket.JSON.Receive(conn, &f); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			// a malformed message, not a dead connection
			decodeErrors++
			_ = sess.Send(model.NewErrorEvent("invalid frame payload", h.now()))
			if decodeErrors >= maxDecodeErrorsPerConn {
				h.log.Debug(ctx, "closing session after repeated decode errors",
					logger.String("session_id", sess.ID()))
				return
			}
			continue
		}
		decodeErrors = 0

		h.handleFrame(ctx, sess, f)
	}
}

func (h *Handler) handleFrame(ctx context.Context, sess *session, f frame) {
	topic, err := resolveTopic(f)
	if err != nil {
		_ = sess.Send(model.NewErrorEvent(err.Error(), h.now()))
		return
	}

	switch strings.ToLower(strings.TrimSpace(f.Type)) {
	case "join":
		sess.setUsername(strings.TrimSpace(f.Username))
		h.broker.Join(ctx, sess, topic)
	case "leave":
		h.broker.Leave(ctx, sess, topic)
	case "chat":
		h.handleChat(ctx, sess, f)
	default:
		_ = sess.Send(model.NewErrorEvent("unsupported frame type", h.now()))
	}
}

// handleChat relays a user message to its match room. The message is
// not persisted; it rides the same publish path as domain events.
func (h *Handler) handleChat(ctx context.Context, sess *session, f frame) {
	matchID := strings.TrimSpace(f.MatchID)
	if matchID == "" {
		_ = sess.Send(model.NewErrorEvent("chat frames must name a matchId", h.now()))
		return
	}
	message := strings.TrimSpace(f.Message)
	if message == "" {
		_ = sess.Send(model.NewErrorEvent("chat message must not be empty", h.now()))
		return
	}
	if username := strings.TrimSpace(f.Username); username != "" {
		sess.setUsername(username)
	}
	h.broker.Publish(ctx, model.NewChatMessage(sess.Username(), matchID, message, h.now()))
}

// resolveTopic maps a control frame to exactly one topic. A frame with
// no id targets the global feed; naming more than one id is rejected.
func resolveTopic(f frame) (string, error) {
	var topics []string
	if id := strings.TrimSpace(f.MatchID); id != "" {
		topics = append(topics, model.MatchTopic(id))
	}
	if id := strings.TrimSpace(f.LeagueID); id != "" {
		topics = append(topics, model.LeagueTopic(id))
	}
	if id := strings.TrimSpace(f.PlayerID); id != "" {
		topics = append(topics, model.PlayerTopic(id))
	}

	switch len(topics) {
	case 0:
		return model.TopicMatches, nil
	case 1:
		return topics[0], nil
	default:
		return "", errors.New("frame must name at most one of matchId, leagueId, playerId")
	}
}
