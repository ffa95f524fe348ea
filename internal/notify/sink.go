package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrSinkClosed is returned when delivering to a closed sink.
var ErrSinkClosed = errors.New("sink closed")

// Sink is the delivery end of a subscriber connection.
//
// Deliver must return once ctx is done. Close must be safe to call more than once.
type Sink interface {
	Deliver(ctx context.Context, payload []byte) error
	Close() error
}

// ChannelSink delivers payloads into a buffered channel.
// A full buffer blocks delivery until the hub's timeout drops the subscriber.
type ChannelSink struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{
		ch:   make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (s *ChannelSink) Deliver(ctx context.Context, payload []byte) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.ch <- payload:
		return nil
	case <-s.done:
		return ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the channel payloads are delivered to. It is never closed; use Done.
func (s *ChannelSink) Events() <-chan []byte {
	return s.ch
}

// Done is closed when the sink is closed.
func (s *ChannelSink) Done() <-chan struct{} {
	return s.done
}

func (s *ChannelSink) Close() error {
	s.once.Do(func() {
		close(s.done)
	})

	return nil
}
