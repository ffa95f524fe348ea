package orderevents

import (
	"context"
	"sync"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/notify"
	"github.com/gorilla/websocket"
)

// wsSink writes hub payloads to one websocket connection.
type wsSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	// mu serialises writers; gorilla allows one concurrent writer.
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

func newWSSink(conn *websocket.Conn, writeTimeout time.Duration) *wsSink {
	return &wsSink{
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// Deliver implements notify.Sink.
func (s *wsSink) Deliver(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return notify.ErrSinkClosed
	}

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSink) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return notify.ErrSinkClosed
	}

	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
}

// Close implements notify.Sink.
func (s *wsSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(s.writeTimeout),
		)
		err = s.conn.Close()
		s.mu.Unlock()

		close(s.done)
	})

	return err
}

// Done is closed once the sink is closed.
func (s *wsSink) Done() <-chan struct{} {
	return s.done
}
