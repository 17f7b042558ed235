package bridge

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livedemo/internal/logging"
)

// Relay is a Frame backed by whichever websocket peer is attached. A new
// peer replaces the previous one.
type Relay struct {
	logger    *logging.Logger
	listeners listenerSet

	mu     sync.Mutex
	peer   *WSFrame
	peerID string
}

// NewRelay creates a relay with no peer
func NewRelay(logger *logging.Logger) *Relay {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Relay{logger: logger}
}

// Attach makes conn the relay's peer. The returned channel closes when
// that peer disconnects or is replaced.
func (r *Relay) Attach(conn *websocket.Conn) (string, <-chan struct{}) {
	peerID := uuid.NewString()
	peer := NewWSFrame(conn, r.listeners.dispatch)

	r.mu.Lock()
	prev := r.peer
	r.peer = peer
	r.peerID = peerID
	r.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	r.logger.Info("frame peer attached", zap.String("peer", peerID))

	go func() {
		<-peer.Done()
		r.mu.Lock()
		if r.peer == peer {
			r.peer = nil
			r.peerID = ""
		}
		r.mu.Unlock()
		r.logger.Info("frame peer detached", zap.String("peer", peerID), zap.Error(peer.Err()))
	}()

	return peerID, peer.Done()
}

// PostMessage forwards msg to the attached peer
func (r *Relay) PostMessage(msg Message) error {
	r.mu.Lock()
	peer := r.peer
	r.mu.Unlock()

	if peer == nil {
		return ErrDetached
	}
	return peer.PostMessage(msg)
}

// AddListener implements Frame
func (r *Relay) AddListener(l Listener) func() {
	return r.listeners.add(l)
}

// Peer returns the attached peer's id, empty when detached
func (r *Relay) Peer() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peerID
}

// Close disconnects the current peer
func (r *Relay) Close() error {
	r.mu.Lock()
	peer := r.peer
	r.peer = nil
	r.peerID = ""
	r.mu.Unlock()

	if peer != nil {
		return peer.Close()
	}
	return nil
}
