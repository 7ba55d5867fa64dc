package agent

import (
	"context"
	"io"
	"sync"
)

// EventType describes streamed reply events.
type EventType string

const (
	EventMessage      EventType = "message"
	EventFinish       EventType = "finish"
	EventConfirmation EventType = "confirmation"
	EventError        EventType = "error"
)

// Event is a single framed update from an open reply stream.
type Event struct {
	Type    EventType
	Message *Message
	Usage   *TokenUsage
	Err     error
}

// Stream yields events until io.EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// eventStream adapts a producer goroutine to the Stream interface.
type eventStream struct {
	events chan Event
	errCh  chan error
	cancel context.CancelFunc

	closeOnce sync.Once
	err       error
	done      bool
}

// newEventStream runs producer in a goroutine and exposes its events as a
// Stream. The producer returns nil on normal completion; Recv then yields
// io.EOF. Close cancels the producer's context.
func newEventStream(ctx context.Context, producer func(ctx context.Context, events chan<- Event) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		events: make(chan Event, 16),
		errCh:  make(chan error, 1),
		cancel: cancel,
	}
	go func() {
		defer close(s.events)
		s.errCh <- producer(ctx, s.events)
	}()
	return s
}

func (s *eventStream) Recv() (Event, error) {
	if s.done {
		if s.err != nil {
			return Event{}, s.err
		}
		return Event{}, io.EOF
	}
	event, ok := <-s.events
	if !ok {
		s.done = true
		s.err = <-s.errCh
		if s.err != nil {
			return Event{}, s.err
		}
		return Event{}, io.EOF
	}
	return event, nil
}

func (s *eventStream) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}
