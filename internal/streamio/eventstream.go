// Package streamio implements the single-producer/single-consumer event
// queue with terminal-event result extraction described in spec §4.A. It
// decouples a streaming producer (a provider adapter, an agent run) from an
// iterator consumer without requiring the consumer to drain every event to
// learn the final result.
//
// The queue itself is an unbounded slice-backed buffer guarded by a mutex
// plus a condition signal; this mirrors how every provider-adapter example
// in the corpus hand-rolls its own event forwarding (fatflowers-gar's
// forwardEvents, crush's reliance on fantasy.Agent.Stream internally) since
// no corpus library supplies a generic terminal-extracting async queue.
package streamio

import (
	"context"
	"sync"
)

// EventStream is the generic queue+future described in spec §4.A. T is the
// event type pushed by the producer; R is the type resolved by Result()
// once a terminal event (or an explicit End) occurs.
type EventStream[T any, R any] struct {
	isTerminal    func(T) bool
	extractResult func(T) R

	mu        sync.Mutex
	cond      *sync.Cond
	buf       []T
	ended     bool
	result    R
	hasResult bool
}

// New creates an EventStream parameterized by isTerminal/extractResult, the
// two functions spec §4.A requires callers to supply.
func New[T any, R any](isTerminal func(T) bool, extractResult func(T) R) *EventStream[T, R] {
	s := &EventStream[T, R]{isTerminal: isTerminal, extractResult: extractResult}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Push enqueues an event. Non-blocking: the buffer grows unbounded, and
// backpressure is the caller's responsibility via cancellation (§4.A, §5).
// If the stream has already ended, Push is a no-op (§4.A).
func (s *EventStream[T, R]) Push(evt T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.buf = append(s.buf, evt)
	if s.isTerminal != nil && s.isTerminal(evt) {
		s.result = s.extractResult(evt)
		s.hasResult = true
		s.ended = true
	}
	s.cond.Broadcast()
}

// End forces the stream to end. If r is present (the variadic slot doubles
// as an "optional" marker), it resolves Result(); otherwise Result()
// releases waiters with ok=false, mirroring "end-of-sequence".
func (s *EventStream[T, R]) End(r ...R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	if len(r) > 0 {
		s.result = r[0]
		s.hasResult = true
	}
	s.cond.Broadcast()
}

// watchCancel starts a goroutine that broadcasts on s.cond as soon as ctx is
// canceled, so blocked Wait()s can re-check ctx.Err(). The returned func
// must be deferred to stop the watcher.
func (s *EventStream[T, R]) watchCancel(ctx context.Context) func() {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-stop:
		}
	}()
	return func() { close(stop) }
}

// Next blocks until an event is available, the stream ends, or ctx is
// canceled. ok is false once the buffer is drained and the stream has
// ended (or ctx was canceled before an event arrived).
func (s *EventStream[T, R]) Next(ctx context.Context) (evt T, ok bool) {
	cancelStop := s.watchCancel(ctx)
	defer cancelStop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) == 0 {
		if s.ended || ctx.Err() != nil {
			var zero T
			return zero, false
		}
		s.cond.Wait()
	}
	evt = s.buf[0]
	s.buf = s.buf[1:]
	return evt, true
}

// Seq returns an iterator over remaining events, for use with Go 1.23+
// range-over-func. Stops when the stream ends and the buffer drains, or ctx
// is canceled.
func (s *EventStream[T, R]) Seq(ctx context.Context) func(yield func(T) bool) {
	return func(yield func(T) bool) {
		for {
			evt, ok := s.Next(ctx)
			if !ok {
				return
			}
			if !yield(evt) {
				return
			}
		}
	}
}

// Result blocks until the stream resolves a terminal result or ends without
// one. ok is false if the stream ended via End() with no result, or if ctx
// was canceled first (pure end-of-sequence in both cases).
func (s *EventStream[T, R]) Result(ctx context.Context) (r R, ok bool) {
	cancelStop := s.watchCancel(ctx)
	defer cancelStop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.ended {
		if ctx.Err() != nil {
			var zero R
			return zero, false
		}
		s.cond.Wait()
	}
	return s.result, s.hasResult
}

// Ended reports whether the stream has transitioned to ended.
func (s *EventStream[T, R]) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}
