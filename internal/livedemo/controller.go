package livedemo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livedemo/internal/bridge"
	"github.com/GriffinCanCode/livedemo/internal/compiler"
	"github.com/GriffinCanCode/livedemo/internal/domain/demo"
	"github.com/GriffinCanCode/livedemo/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livedemo/internal/logging"
	"github.com/GriffinCanCode/livedemo/internal/render"
	"github.com/GriffinCanCode/livedemo/internal/sandbox"
	"github.com/GriffinCanCode/livedemo/internal/scheduler"
	"github.com/GriffinCanCode/livedemo/internal/shared/id"
)

const (
	targetLocal  = "local"
	targetCustom = "custom"
	targetIframe = "iframe"
)

// Controller owns the transient state of one open demo
type Controller struct {
	demo    *demo.Demo
	entry   string
	opts    Options
	target  string
	loading time.Duration

	evaluator *sandbox.Evaluator
	validator *render.Validator
	mount     *render.Mount
	bridge    *bridge.Bridge
	throttle  *scheduler.Throttle[demo.Source]
	logger    *logging.Logger
	metrics   *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	source  demo.Source
	current id.TaskToken
	closed  bool
	subs    map[uint64]chan State
	nextSub uint64
}

// task is one execution of SetSource
type task struct {
	token   id.TaskToken
	source  demo.Source
	started time.Time
	logger  *logging.Logger
	phase   Phase

	// guarded by Controller.mu
	timer   scheduler.Timer
	settled bool
}

// New creates a controller for d
func New(d *demo.Demo, opts Options) (*Controller, error) {
	opts.normalize()

	c := &Controller{
		demo:      d,
		opts:      opts,
		target:    targetLocal,
		evaluator: sandbox.NewEvaluator(opts.Sandbox),
		validator: render.NewValidator(),
		logger:    opts.Logger.ForDemo(d.ID),
		metrics:   opts.Metrics,
		subs:      make(map[uint64]chan State),
		state:     State{Phase: PhaseIdle},
	}

	switch {
	case d.Iframe:
		if opts.Frame == nil {
			return nil, ErrNoFrame
		}
		c.target = targetIframe
		c.bridge = bridge.New(opts.Frame, bridge.Options{
			Timeout: opts.BridgeTimeout,
			Clock:   opts.Clock,
			Logger:  c.logger,
		})
	default:
		entry, err := d.Asset.EntryFile()
		if err != nil {
			return nil, fmt.Errorf("demo %s: %w", d.ID, err)
		}
		c.entry = entry
		if opts.Render.custom() {
			c.target = targetCustom
		}
	}

	mount, err := render.NewMount(d.ID.String())
	if err != nil {
		return nil, err
	}
	c.mount = mount

	// One millisecond short of the window, so a task's indicator never
	// outlives the next throttle window
	c.loading = opts.Wait - time.Millisecond
	if c.loading <= 0 {
		c.loading = DefaultWait - time.Millisecond
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.throttle = scheduler.NewThrottle(opts.Clock, opts.Wait, c.start)
	c.metrics.IncDemosActive()
	return c, nil
}

// Demo returns the demo this controller runs
func (c *Controller) Demo() *demo.Demo {
	return c.demo
}

// SetSource schedules src for execution. It never blocks on the task.
func (c *Controller) SetSource(src demo.Source) error {
	src = src.Clone()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.source = src
	c.mu.Unlock()

	if c.throttle.Pending() {
		c.metrics.RecordEditThrottled(c.target)
	}
	c.throttle.Call(src)
	return nil
}

// Source returns a copy of the last source passed to SetSource
func (c *Controller) Source() demo.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source.Clone()
}

// State returns a snapshot of the observable state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that always holds the latest state. Slow
// readers skip intermediate states.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	key := c.nextSub
	c.nextSub++
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subs[key] = ch
	ch <- c.state
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[key]; ok {
				delete(c.subs, key)
				close(ch)
			}
		})
	}
}

// HTML returns the visible markup: the mount anchor, or the frame's
// content when the frame can report it
func (c *Controller) HTML() string {
	if c.demo.Iframe {
		if h, ok := c.opts.Frame.(interface{ HTML() string }); ok {
			return h.HTML()
		}
		return ""
	}
	return c.mount.HTML()
}

// Mount returns the same-document target
func (c *Controller) Mount() *render.Mount {
	return c.mount
}

// Close stops scheduling, cancels in-flight work and waits for it
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.throttle.Stop()
	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	for key, ch := range c.subs {
		delete(c.subs, key)
		close(ch)
	}
	c.mu.Unlock()

	c.metrics.DecDemosActive()
	c.logger.Debug("live demo closed")
	return nil
}

// start mints the task token and arms the loading timer before any work
func (c *Controller) start(src demo.Source) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	t := &task{
		token:   id.NewTaskToken(),
		source:  src,
		started: c.opts.Clock.Now(),
		phase:   PhaseIdle,
	}
	t.logger = c.logger.ForTask(t.token)
	c.current = t.token
	c.state.Token = t.token
	t.timer = c.opts.Clock.AfterFunc(c.loading, func() { c.showLoading(t) })
	c.wg.Add(1)
	c.notifyLocked()
	c.mu.Unlock()

	c.metrics.RecordTaskStarted(c.target)
	go c.run(t)
}

func (c *Controller) showLoading(t *task) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.settled || c.current != t.token || c.state.Loading {
		return
	}
	c.state.Loading = true
	c.notifyLocked()
	c.metrics.RecordLoadingShown(c.target)
	t.logger.Debug("loading indicator shown")
}

func (c *Controller) run(t *task) {
	defer c.wg.Done()

	var err error
	if c.demo.Iframe {
		err = c.runFrame(t)
	} else {
		err = c.runLocal(t)
	}
	c.settle(t, err)
}

func (c *Controller) runLocal(t *task) error {
	code, ok := t.source[c.entry]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingEntry, c.entry)
	}

	if comp := c.opts.Render.Compiler; comp != nil {
		c.setPhase(t, PhaseCompiling)
		out, err := comp.Compile(c.ctx, code, compiler.Meta{Filename: c.entry})
		if err != nil {
			return err
		}
		code = out
	}

	if !c.isCurrent(t) {
		return errStale
	}
	c.setPhase(t, PhaseEvaluating)
	ec := c.evaluator.NewContext(c.demo.Context)
	if err := c.evaluator.Evaluate(c.ctx, code, ec); err != nil {
		return err
	}
	component, err := ec.Component()
	if err != nil {
		return err
	}

	if c.opts.Render.custom() {
		return c.runCustom(t, component)
	}

	node := render.NewElementNode(component, c.opts.Sandbox.Timeout)
	c.setPhase(t, PhaseValidating)
	if err := c.validator.Validate(c.ctx, node); err != nil {
		return err
	}
	return c.commit(t, node)
}

// runCustom trusts the external pipeline's preflight instead of the
// built-in validator
func (c *Controller) runCustom(t *task, component sandbox.Component) error {
	if preflight := c.opts.Render.Preflight; preflight != nil {
		c.setPhase(t, PhaseValidating)
		if err := preflight(c.ctx, component); err != nil {
			return err
		}
	}

	canvas := render.NewCanvasNode(c.demo.ID.String())
	if err := c.commit(t, canvas); err != nil {
		return err
	}
	c.setPhase(t, PhaseRendering)
	return c.opts.Render.Renderer.Render(c.ctx, canvas, component)
}

// runFrame skips local compile and evaluation; the frame does both
func (c *Controller) runFrame(t *task) error {
	c.setPhase(t, PhaseBridging)
	c.metrics.RecordFrameMessage("out", bridge.TypeSetSource)

	done, err := c.bridge.SetSource(c.ctx, t.source)
	if err != nil {
		return err
	}
	c.metrics.RecordFrameMessage("in", bridge.CompileDonePrefix)
	if done.Err != nil {
		return done.Err
	}
	return c.commit(t, nil)
}

// commit publishes node if t is still current. The live render runs
// outside the state lock; the token is checked again before the anchor is
// written so a stale task can never overwrite a newer commit. A failed live
// render keeps the previous node and anchor. A nil node keeps the previous
// one.
func (c *Controller) commit(t *task, node *render.Node) error {
	var markup string
	if node != nil {
		if !c.isCurrent(t) {
			return errStale
		}
		out, err := node.RenderLive(c.ctx)
		if err != nil {
			return err
		}
		markup = out
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.current != t.token {
		return errStale
	}

	if node != nil {
		c.mount.Write(markup)
		c.state.Node = node
	}
	c.state.Err = nil
	c.state.Phase = PhaseCommitted
	c.notifyLocked()
	return nil
}

// settle ends t exactly once: the loading timer is cancelled and, for the
// current task, loading is cleared and the error recorded
func (c *Controller) settle(t *task, err error) {
	c.mu.Lock()
	if t.settled {
		c.mu.Unlock()
		return
	}
	t.settled = true
	t.timer.Stop()
	elapsed := c.opts.Clock.Now().Sub(t.started)

	if c.closed || c.current != t.token || errors.Is(err, errStale) {
		c.mu.Unlock()
		c.metrics.RecordTaskSettled(c.target, "stale", elapsed)
		t.logger.Debug("dropped stale task", zap.Duration("elapsed", elapsed))
		return
	}

	c.state.Loading = false
	c.state.Phase = PhaseIdle
	if err != nil {
		c.state.Err = err
		c.state.Outcome = PhaseFailed
	} else {
		c.state.Outcome = PhaseCommitted
	}
	c.notifyLocked()
	c.mu.Unlock()

	if err != nil {
		kind := classifyAt(t.phase, err)
		c.metrics.RecordTaskSettled(c.target, "failed", elapsed)
		c.metrics.RecordTaskFailure(string(kind))
		t.logger.Warn("demo task failed",
			zap.String("error_kind", string(kind)),
			zap.String("phase", string(t.phase)),
			zap.Error(err))
		return
	}
	c.metrics.RecordTaskSettled(c.target, "committed", elapsed)
	t.logger.Debug("demo task committed", zap.Duration("elapsed", elapsed))
}

func (c *Controller) setPhase(t *task, phase Phase) {
	t.phase = phase

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == t.token && !c.closed {
		c.state.Phase = phase
		c.notifyLocked()
	}
}

func (c *Controller) isCurrent(t *task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == t.token && !c.closed
}

func (c *Controller) notifyLocked() {
	st := c.state
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}
