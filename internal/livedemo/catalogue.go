package livedemo

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livedemo/internal/bridge"
	"github.com/GriffinCanCode/livedemo/internal/domain/demo"
	"github.com/GriffinCanCode/livedemo/internal/logging"
	"github.com/GriffinCanCode/livedemo/internal/shared/id"
)

var ErrUnknownDemo = errors.New("unknown demo")

// FrameFactory builds the isolated context an iframe demo runs in
type FrameFactory func(d *demo.Demo) (bridge.Frame, error)

// Catalogue keeps the known demos and at most one controller per demo
type Catalogue struct {
	base   Options
	frames FrameFactory
	logger *logging.Logger

	mu          sync.RWMutex
	demos       map[id.DemoID]*demo.Demo
	order       []id.DemoID
	controllers map[id.DemoID]*Controller
	ownedFrames map[id.DemoID]bridge.Frame
}

// NewCatalogue indexes demos. base is applied to every controller; frames
// may be nil when no demo runs in an iframe.
func NewCatalogue(demos []*demo.Demo, base Options, frames FrameFactory) *Catalogue {
	c := &Catalogue{
		base:        base,
		frames:      frames,
		logger:      base.Logger,
		demos:       make(map[id.DemoID]*demo.Demo, len(demos)),
		controllers: make(map[id.DemoID]*Controller),
		ownedFrames: make(map[id.DemoID]bridge.Frame),
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	for _, d := range demos {
		if _, dup := c.demos[d.ID]; dup {
			continue
		}
		c.demos[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	return c
}

// List returns the demos in catalogue order
func (c *Catalogue) List() []*demo.Demo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*demo.Demo, 0, len(c.order))
	for _, demoID := range c.order {
		out = append(out, c.demos[demoID])
	}
	return out
}

// Demo returns the demo registered under demoID
func (c *Catalogue) Demo(demoID id.DemoID) (*demo.Demo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.demos[demoID]
	return d, ok
}

// Get returns the open controller for demoID
func (c *Catalogue) Get(demoID id.DemoID) (*Controller, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctrl, ok := c.controllers[demoID]
	return ctrl, ok
}

// OpenCount returns the number of open controllers
func (c *Catalogue) OpenCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.controllers)
}

// Frame returns the frame an open iframe demo talks to
func (c *Catalogue) Frame(demoID id.DemoID) (bridge.Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.ownedFrames[demoID]
	return f, ok
}

// Open returns the demo's controller, creating it and scheduling the
// demo's own source on first use
func (c *Catalogue) Open(demoID id.DemoID) (*Controller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctrl, ok := c.controllers[demoID]; ok {
		return ctrl, nil
	}
	d, ok := c.demos[demoID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDemo, demoID)
	}

	opts := c.base
	if d.Iframe {
		if c.frames == nil {
			return nil, ErrNoFrame
		}
		frame, err := c.frames(d)
		if err != nil {
			return nil, fmt.Errorf("frame for %s: %w", demoID, err)
		}
		opts.Frame = frame
		c.ownedFrames[demoID] = frame
	}

	ctrl, err := New(d, opts)
	if err != nil {
		c.closeFrameLocked(demoID)
		return nil, err
	}
	c.controllers[demoID] = ctrl

	if err := ctrl.SetSource(d.Asset.Source()); err != nil {
		return nil, err
	}
	c.logger.Info("demo opened", zap.String("demo", demoID.String()), zap.Bool("iframe", d.Iframe))
	return ctrl, nil
}

// Close discards the demo's controller and frame
func (c *Catalogue) Close(demoID id.DemoID) error {
	c.mu.Lock()
	ctrl, ok := c.controllers[demoID]
	delete(c.controllers, demoID)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	err := ctrl.Close()

	c.mu.Lock()
	c.closeFrameLocked(demoID)
	c.mu.Unlock()
	return err
}

// CloseAll closes every open demo
func (c *Catalogue) CloseAll() error {
	c.mu.RLock()
	ids := make([]id.DemoID, 0, len(c.controllers))
	for demoID := range c.controllers {
		ids = append(ids, demoID)
	}
	c.mu.RUnlock()

	var errs []error
	for _, demoID := range ids {
		if err := c.Close(demoID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Catalogue) closeFrameLocked(demoID id.DemoID) {
	frame, ok := c.ownedFrames[demoID]
	if !ok {
		return
	}
	delete(c.ownedFrames, demoID)
	if closer, ok := frame.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Warn("close frame", zap.String("demo", demoID.String()), zap.Error(err))
		}
	}
}
