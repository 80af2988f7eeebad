package ws

import (
	"sync"

	"golang.org/x/net/websocket"

	"matchpulse/internal/domain/model"
)

// session is one websocket subscriber. The dispatcher and the control
// loop both write to the connection, so writes are mutex-guarded.
type session struct {
	id   string
	conn *websocket.Conn

	mu       sync.Mutex
	username string
}

func newSession(id string, conn *websocket.Conn) *session {
	return &session{id: id, conn: conn, username: "anonymous"}
}

func (s *session) ID() string { return s.id }

func (s *session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *session) setUsername(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	s.username = name
	s.mu.Unlock()
}

// Send writes one event as a JSON websocket message.
func (s *session) Send(e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return websocket.JSON.Send(s.conn, e)
}
