package eventstream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSubscriberClosed is returned by Send once a subscriber has been
// closed.
var ErrSubscriberClosed = errors.New("eventstream: subscriber closed")

// wsSubscriber adapts a gorilla/websocket connection to the Subscriber
// interface, grounded on the teacher's internal/realtime.baseSubscriber.
type wsSubscriber struct {
	id     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &wsSubscriber{id: newSubscriberID(), conn: conn, ctx: ctx, cancel: cancel}
}

func (s *wsSubscriber) ID() string                { return s.id }
func (s *wsSubscriber) Context() context.Context  { return s.ctx }

func (s *wsSubscriber) Send(e WireEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSubscriberClosed
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return s.conn.Close()
}

// watchClientClose blocks reading from the connection (discarding
// messages) until the client disconnects, then cancels the subscriber's
// context so Bus.broadcast notices and unsubscribes it.
func (s *wsSubscriber) watchClientClose() {
	defer s.cancel()
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
