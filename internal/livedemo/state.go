package livedemo

import (
	"context"
	"time"

	"github.com/GriffinCanCode/livedemo/internal/bridge"
	"github.com/GriffinCanCode/livedemo/internal/compiler"
	"github.com/GriffinCanCode/livedemo/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livedemo/internal/logging"
	"github.com/GriffinCanCode/livedemo/internal/render"
	"github.com/GriffinCanCode/livedemo/internal/sandbox"
	"github.com/GriffinCanCode/livedemo/internal/scheduler"
	"github.com/GriffinCanCode/livedemo/internal/shared/id"
)

// DefaultWait is the minimum interval between task starts
const DefaultWait = 500 * time.Millisecond

// Phase is where a controller's current task is
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCompiling  Phase = "compiling"
	PhaseEvaluating Phase = "evaluating"
	PhaseBridging   Phase = "bridging"
	PhaseValidating Phase = "validating"
	PhaseRendering  Phase = "rendering"
	PhaseCommitted  Phase = "committed"
	PhaseFailed     Phase = "failed"
)

// State is the observable surface of a live demo
type State struct {
	Node    *render.Node
	Loading bool
	Err     error
	Phase   Phase // current task's phase, Idle once it settled
	Outcome Phase // Committed or Failed for the last settled task
	Token   id.TaskToken
}

// Renderer draws a component into a canvas node committed by the controller
type Renderer interface {
	Render(ctx context.Context, canvas *render.Node, component sandbox.Component) error
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(ctx context.Context, canvas *render.Node, component sandbox.Component) error

// Render calls f
func (f RendererFunc) Render(ctx context.Context, canvas *render.Node, component sandbox.Component) error {
	return f(ctx, canvas, component)
}

// Preflight checks a component before an external renderer receives it
type Preflight func(ctx context.Context, component sandbox.Component) error

// RenderOptions replaces the built-in validator and mount with an external
// pipeline when both Compiler and Renderer are set. Either one alone keeps
// the built-in validator; a lone Compiler adds a compile step and a lone
// Renderer is ignored.
type RenderOptions struct {
	Compiler  compiler.Compiler
	Renderer  Renderer
	Preflight Preflight
}

func (o RenderOptions) custom() bool {
	return o.Renderer != nil && o.Compiler != nil
}

// Options configures a Controller
type Options struct {
	Render RenderOptions

	// Frame receives the source when the demo runs in an iframe
	Frame bridge.Frame

	// Wait is the throttle window; zero means DefaultWait and a negative
	// value disables throttling
	Wait time.Duration

	BridgeTimeout time.Duration
	Sandbox       sandbox.Config
	Clock         scheduler.Clock
	Logger        *logging.Logger
	Metrics       *monitoring.Metrics
}

func (o *Options) normalize() {
	switch {
	case o.Wait == 0:
		o.Wait = DefaultWait
	case o.Wait < 0:
		o.Wait = 0
	}
	if o.Sandbox == (sandbox.Config{}) {
		o.Sandbox = sandbox.DefaultConfig()
	}
	if o.Clock == nil {
		o.Clock = scheduler.Real()
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
}
