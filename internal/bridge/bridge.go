package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livedemo/internal/domain/demo"
	"github.com/GriffinCanCode/livedemo/internal/logging"
	"github.com/GriffinCanCode/livedemo/internal/scheduler"
)

// Options configures a Bridge
type Options struct {
	// Timeout bounds each round trip; zero waits until the context ends
	Timeout time.Duration
	Clock   scheduler.Clock
	Logger  *logging.Logger
}

// Bridge sends demo source to a Frame, one round trip at a time
type Bridge struct {
	frame   Frame
	timeout time.Duration
	clock   scheduler.Clock
	logger  *logging.Logger

	mu      sync.Mutex
	pending *roundTrip
}

// New creates a bridge over frame
func New(frame Frame, opts Options) *Bridge {
	if opts.Clock == nil {
		opts.Clock = scheduler.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Bridge{
		frame:   frame,
		timeout: opts.Timeout,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}
}

type outcome struct {
	done *CompileDone
	err  error
}

type roundTrip struct {
	id     string
	result chan outcome

	mu      sync.Mutex
	settled bool
	remove  func()
}

// onMessage is the round trip's only listener
func (rt *roundTrip) onMessage(msg Message) {
	if !msg.IsCompileDone() {
		return
	}
	if msg.ID != "" && msg.ID != rt.id {
		return
	}

	var done CompileDone
	if len(msg.Value) > 0 {
		if err := msg.Decode(&done); err != nil {
			rt.settle(outcome{err: err})
			return
		}
	}
	rt.settle(outcome{done: &done})
}

// setRemove records the listener's remover, removing at once when the
// round trip already settled
func (rt *roundTrip) setRemove(remove func()) {
	rt.mu.Lock()
	rt.remove = remove
	settled := rt.settled
	rt.mu.Unlock()

	if settled {
		remove()
	}
}

// settle resolves the round trip exactly once and deregisters the listener
// before the waiter can observe the result
func (rt *roundTrip) settle(o outcome) {
	rt.mu.Lock()
	if rt.settled {
		rt.mu.Unlock()
		return
	}
	rt.settled = true
	remove := rt.remove
	rt.mu.Unlock()

	if remove != nil {
		remove()
	}
	rt.result <- o
}

// SetSource posts src to the frame and waits for its completion report.
// A non-nil error means the round trip itself failed; an error raised
// inside the frame is reported through CompileDone.Err.
func (b *Bridge) SetSource(ctx context.Context, src demo.Source) (*CompileDone, error) {
	msg, err := NewMessage(TypeSetSource, src)
	if err != nil {
		return nil, err
	}

	rt := &roundTrip{
		id:     uuid.NewString(),
		result: make(chan outcome, 1),
	}
	msg.ID = rt.id

	b.mu.Lock()
	prev := b.pending
	b.pending = rt
	b.mu.Unlock()
	if prev != nil {
		prev.settle(outcome{err: ErrSuperseded})
	}
	defer b.clearPending(rt)

	rt.setRemove(b.frame.AddListener(rt.onMessage))

	if err := b.frame.PostMessage(msg); err != nil {
		rt.settle(outcome{err: err})
		return nil, (<-rt.result).err
	}

	if b.timeout > 0 {
		timer := b.clock.AfterFunc(b.timeout, func() {
			rt.settle(outcome{err: ErrTimeout})
		})
		defer timer.Stop()
	}

	var out outcome
	select {
	case out = <-rt.result:
	case <-ctx.Done():
		rt.settle(outcome{err: ctx.Err()})
		out = <-rt.result
	}

	if out.err != nil {
		b.logger.Debug("round trip ended without completion",
			zap.String("round_trip", rt.id), zap.Error(out.err))
	}
	return out.done, out.err
}

func (b *Bridge) clearPending(rt *roundTrip) {
	b.mu.Lock()
	if b.pending == rt {
		b.pending = nil
	}
	b.mu.Unlock()
}

// Pending reports whether a round trip is waiting for its reply
func (b *Bridge) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending != nil
}
