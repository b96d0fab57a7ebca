// Package events provides a small in-process broadcast stream used for
// daemon coordination.
//
// A Stream fans one producer out to any number of subscribers. Subscribers
// see every value published after their subscription point; there is no
// replay of earlier values. Consumers that need "what happened before I
// subscribed" must pair the stream with a last-value snapshot held by the
// producer.
package events

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/codegend/internal/errors"
)

// Stream is a multi-subscriber broadcast channel for values of type T.
//
// Design goals:
//   - Replay-none semantics (late subscribers miss earlier values)
//   - Independent consumption (one slow subscriber never drops another's values)
//   - Clean shutdown (Close closes all subscription channels)
//
// This is not durable; it carries control-flow values inside one process.
type Stream[T any] struct {
	mu       sync.Mutex
	subs     map[uint64]chan T
	nextID   uint64
	closed   bool
	closeOne sync.Once
}

// NewStream creates an empty broadcast stream.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{
		subs: make(map[uint64]chan T),
	}
}

// Subscribe registers a new subscriber with the given channel buffer and
// returns its receive channel plus a cancel function. Cancel is idempotent
// and closes the channel.
func (s *Stream[T]) Subscribe(buffer int) (<-chan T, func()) {
	ch := make(chan T, buffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.nextID++
	id := s.nextID
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers. Intended for
// tests and diagnostics.
func (s *Stream[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Publish delivers v to every current subscriber in turn.
//
// Backpressure: Publish blocks until each subscriber has accepted the value
// or the context is canceled. Subscribers should use a buffer sized for
// their consumption pattern.
func (s *Stream[T]) Publish(ctx context.Context, v T) error {
	if ctx == nil {
		return errors.New(errors.CategoryValidation, errors.SeverityError, "context cannot be nil")
	}

	// The lock is held for the whole delivery so a concurrent cancel cannot
	// close a channel mid-send. Cancel blocks until delivery completes.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.DaemonError("stream is closed")
	}

	for _, ch := range s.subs {
		select {
		case ch <- v:
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.CategoryRuntime, errors.SeverityError, "publish canceled")
		}
	}
	return nil
}

// Close closes the stream and every subscription channel. Publish and
// Subscribe after Close are no-ops (Publish returns an error, Subscribe
// returns a closed channel).
func (s *Stream[T]) Close() {
	s.closeOne.Do(func() {
		s.mu.Lock()
		s.closed = true
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	})
}
