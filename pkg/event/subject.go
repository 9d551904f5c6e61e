package event

import "sync"

// Subject is a broadcast cell that replays its latest value to every new
// subscriber, mirroring the replay-latest semantics the presentation layer
// expects from its reactive streams.
//
// Subscriber channels are buffered; a subscriber that stops draining loses
// the oldest update rather than blocking the engine.
type Subject[T any] struct {
	mu   sync.Mutex
	has  bool
	last T
	subs []chan T
}

const subjectBuffer = 16

func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Next publishes a value, retains it for replay and fans it out.
func (s *Subject[T]) Next(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = v
	s.has = true
	for _, ch := range s.subs {
		send(ch, v)
	}
}

// Latest returns the most recently published value, if any.
func (s *Subject[T]) Latest() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.has
}

// Subscribe registers a new receiver. The latest value, when present, is
// delivered immediately.
func (s *Subject[T]) Subscribe() <-chan T {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan T, subjectBuffer)
	if s.has {
		ch <- s.last
	}
	s.subs = append(s.subs, ch)
	return ch
}

func send[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		// Full buffer: drop the oldest update to make room.
		select {
		case <-ch:
		default:
		}
	}
}
