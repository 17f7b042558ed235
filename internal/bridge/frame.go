package bridge

import (
	"errors"
	"sync"
)

var (
	ErrTimeout    = errors.New("frame did not report completion in time")
	ErrSuperseded = errors.New("round trip superseded by a newer source")
	ErrDetached   = errors.New("no frame peer attached")
	ErrClosed     = errors.New("frame closed")
)

// Listener receives inbound frame messages
type Listener func(Message)

// Frame is an isolated execution context reachable only by messages
type Frame interface {
	// PostMessage delivers msg asynchronously; replies arrive via listeners
	PostMessage(msg Message) error
	// AddListener registers l and returns a function that removes it
	AddListener(l Listener) (remove func())
}

// listenerSet is the listener registry shared by the frame implementations.
// Dispatch works on a snapshot, so a listener may remove itself while it
// is being called.
type listenerSet struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]Listener
}

func (s *listenerSet) add(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[uint64]Listener)
	}
	key := s.next
	s.next++
	s.subs[key] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, key)
			s.mu.Unlock()
		})
	}
}

func (s *listenerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *listenerSet) dispatch(msg Message) {
	s.mu.Lock()
	keys := make([]uint64, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.mu.Lock()
		l, ok := s.subs[k]
		s.mu.Unlock()
		if ok {
			l(msg)
		}
	}
}
