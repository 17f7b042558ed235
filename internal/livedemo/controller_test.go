package livedemo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livedemo/internal/bridge"
	"github.com/GriffinCanCode/livedemo/internal/compiler"
	"github.com/GriffinCanCode/livedemo/internal/domain/demo"
	"github.com/GriffinCanCode/livedemo/internal/render"
	"github.com/GriffinCanCode/livedemo/internal/sandbox"
	"github.com/GriffinCanCode/livedemo/tests/helpers/testutil"
)

func button(label string) string {
	return `var h = require("react").createElement;
exports.default = function App() { return h("button", {className: "btn"}, "` + label + `"); };`
}

func buttonHTML(label string) string {
	return `<button class="btn">` + label + `</button>`
}

func newController(t *testing.T, d *demo.Demo, opts Options) (*Controller, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock()
	if opts.Clock == nil {
		opts.Clock = clock
	}
	c, err := New(d, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

// waitIdle waits for every started task. Only call it from the goroutine
// that schedules tasks.
func waitIdle(c *Controller) {
	c.wg.Wait()
}

// passthrough compiles code to itself
var passthrough = compiler.Func(func(_ context.Context, code string, _ compiler.Meta) (string, error) {
	return code, nil
})

// gatedCompiler blocks sources that have a gate until the gate is closed
type gatedCompiler struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	errs  map[string]error
	calls []string
}

func newGatedCompiler() *gatedCompiler {
	return &gatedCompiler{gates: make(map[string]chan struct{}), errs: make(map[string]error)}
}

// fail makes code compile to err once its gate, if any, opens
func (g *gatedCompiler) fail(code string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[code] = err
}

func (g *gatedCompiler) gate(code string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[code] = ch
	return ch
}

func (g *gatedCompiler) Compile(ctx context.Context, code string, _ compiler.Meta) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, code)
	gate := g.gates[code]
	err := g.errs[code]
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

func (g *gatedCompiler) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func TestCommitsRenderedComponent(t *testing.T) {
	d := testutil.CreateTestDemo(t, "button", button("Click"))
	c, _ := newController(t, d, Options{Wait: -1})

	require.NoError(t, c.SetSource(testutil.Source(button("Click"))))
	waitIdle(c)

	st := c.State()
	require.NoError(t, st.Err)
	require.NotNil(t, st.Node)
	assert.False(t, st.Loading)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, PhaseCommitted, st.Outcome)
	assert.False(t, st.Token.IsZero())
	assert.Equal(t, buttonHTML("Click"), c.HTML())
}

func TestThrottleCoalescesBurst(t *testing.T) {
	d := testutil.CreateTestDemo(t, "button", button("v0"))
	comp := newGatedCompiler()
	c, clock := newController(t, d, Options{Render: RenderOptions{Compiler: comp}})

	for i := 1; i <= 5; i++ {
		require.NoError(t, c.SetSource(testutil.Source(button(string(rune('0'+i))))))
	}
	waitIdle(c)
	assert.Equal(t, []string{button("1")}, comp.Calls(), "leading edge runs the first call at once")

	clock.Advance(499 * time.Millisecond)
	waitIdle(c)
	assert.Len(t, comp.Calls(), 1)

	clock.Advance(time.Millisecond)
	waitIdle(c)
	assert.Equal(t, []string{button("1"), button("5")}, comp.Calls(), "trailing run uses the latest source")
	assert.Equal(t, buttonHTML("5"), c.HTML())

	clock.Advance(10 * time.Second)
	waitIdle(c)
	assert.Len(t, comp.Calls(), 2)
}

func TestStaleTaskNeverCommits(t *testing.T) {
	tests := []struct {
		name   string
		result error // what task A's compile returns once released
	}{
		{name: "stale success", result: nil},
		{name: "stale compile error", result: &compiler.Error{Message: "Unexpected token (1:1)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testutil.CreateTestDemo(t, "button", button("A"))
			comp := newGatedCompiler()
			c, _ := newController(t, d, Options{Wait: -1, Render: RenderOptions{Compiler: comp}})

			releaseA := comp.gate(button("A"))
			if tt.result != nil {
				comp.fail(button("A"), tt.result)
			}
			require.NoError(t, c.SetSource(testutil.Source(button("A"))))
			require.NoError(t, c.SetSource(testutil.Source(button("B"))))

			require.Eventually(t, func() bool {
				return c.State().Outcome == PhaseCommitted
			}, 5*time.Second, time.Millisecond)
			committed := c.State()
			assert.Equal(t, buttonHTML("B"), c.HTML())

			close(releaseA)
			waitIdle(c)

			st := c.State()
			assert.Same(t, committed.Node, st.Node)
			assert.Equal(t, committed.Token, st.Token)
			assert.NoError(t, st.Err)
			assert.Equal(t, PhaseCommitted, st.Outcome)
			assert.Equal(t, buttonHTML("B"), c.HTML())
			assert.Equal(t, 1, c.Mount().Commits())
		})
	}
}

func TestLiveRenderDoesNotHoldState(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var enterOnce, releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }

	slow := `var R = require("react");
var signal = require("signal");
exports.default = function Slow() {
	R.useEffect(function () { signal.enter(); });
	return R.createElement("span", null, "slow");
};`
	d := testutil.CreateTestDemo(t, "slow", slow)
	d.Context = sandbox.Dependencies{
		"react": render.Runtime(),
		"signal": map[string]any{
			"enter": func() {
				enterOnce.Do(func() { close(entered) })
				<-release
			},
		},
	}
	c, _ := newController(t, d, Options{Wait: -1})
	defer unblock()

	require.NoError(t, c.SetSource(testutil.Source(slow)))
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("effect never ran")
	}

	// Anything still waiting on the state lock is freed eventually
	guard := time.AfterFunc(5*time.Second, unblock)
	defer guard.Stop()

	start := time.Now()
	require.NoError(t, c.SetSource(testutil.Source(button("x"))))
	_ = c.State()
	assert.Less(t, time.Since(start), time.Second, "SetSource waited for a running effect")

	require.Eventually(t, func() bool {
		return c.State().Outcome == PhaseCommitted
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, buttonHTML("x"), c.HTML())

	unblock()
	waitIdle(c)

	st := c.State()
	assert.NoError(t, st.Err)
	assert.Equal(t, buttonHTML("x"), c.HTML(), "the slow task finished stale and wrote nothing")
	assert.Equal(t, 1, c.Mount().Commits())
}

func TestLoadingIndicatorDebounce(t *testing.T) {
	t.Run("fast task never shows loading", func(t *testing.T) {
		d := testutil.CreateTestDemo(t, "fast", button("x"))
		c, clock := newController(t, d, Options{})

		require.NoError(t, c.SetSource(testutil.Source(button("x"))))
		waitIdle(c)
		assert.Equal(t, 0, clock.Pending(), "settling cancels the loading timer")

		clock.Advance(time.Second)
		assert.False(t, c.State().Loading)
	})

	t.Run("slow task shows loading after W-1", func(t *testing.T) {
		d := testutil.CreateTestDemo(t, "slow", button("x"))
		comp := newGatedCompiler()
		release := comp.gate(button("x"))
		c, clock := newController(t, d, Options{Render: RenderOptions{Compiler: comp}})

		require.NoError(t, c.SetSource(testutil.Source(button("x"))))

		clock.Advance(498 * time.Millisecond)
		assert.False(t, c.State().Loading)
		clock.Advance(time.Millisecond)
		assert.True(t, c.State().Loading)

		close(release)
		waitIdle(c)
		st := c.State()
		assert.False(t, st.Loading)
		assert.NoError(t, st.Err)
	})
}

func TestCompileErrorSurfacedVerbatim(t *testing.T) {
	d := testutil.CreateTestDemo(t, "broken", button("x"))
	compileErr := errors.New("Unexpected token (1:1)")

	comp := new(testutil.MockCompiler)
	comp.On("Compile", mock.Anything, "<", compiler.Meta{Filename: testutil.EntryFile}).Return("", compileErr).Once()

	c, _ := newController(t, d, Options{Wait: -1, Render: RenderOptions{Compiler: comp}})
	require.NoError(t, c.SetSource(testutil.Source("<")))
	waitIdle(c)

	st := c.State()
	assert.Same(t, compileErr, st.Err)
	assert.Nil(t, st.Node, "the first task failing leaves no node")
	assert.Equal(t, PhaseFailed, st.Outcome)
	assert.False(t, st.Loading)
	assert.Equal(t, 0, c.Mount().Commits())
	comp.AssertExpectations(t)
}

func TestFailuresKeepLastGoodNode(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		kind     ErrorKind
		contains string
	}{
		{"evaluation error", `throw new TypeError("bad module")`, KindEvaluation, "bad module"},
		{"module not found", `require("unknown-pkg")`, KindModuleNotFound, "unknown-pkg"},
		{"no default export", `exports.other = 1`, KindEvaluation, "default export"},
		{"render failure", `exports.default = function () { throw new Error("render broke"); };`, KindRender, "render broke"},
		{"effect failure", `var R = require("react");
exports.default = function () {
	R.useEffect(function () { throw new Error("effect broke"); });
	return R.createElement("i", null, "fine statically");
};`, KindRender, "effect broke"},
		{"missing entry", "", KindUnknown, "entry file missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testutil.CreateTestDemo(t, "keep", button("good"))
			c, _ := newController(t, d, Options{Wait: -1})

			require.NoError(t, c.SetSource(testutil.Source(button("good"))))
			waitIdle(c)
			good := c.State()
			require.NoError(t, good.Err)

			src := testutil.Source(tt.code)
			if tt.code == "" {
				src = demo.Source{"other.jsx": button("x")}
			}
			require.NoError(t, c.SetSource(src))
			waitIdle(c)

			st := c.State()
			require.Error(t, st.Err)
			assert.Contains(t, st.Err.Error(), tt.contains)
			assert.Equal(t, tt.kind, Classify(st.Err))
			assert.Same(t, good.Node, st.Node)
			assert.Equal(t, PhaseFailed, st.Outcome)
			assert.Equal(t, buttonHTML("good"), c.HTML())

			// The demo stays usable
			require.NoError(t, c.SetSource(testutil.Source(button("again"))))
			waitIdle(c)
			assert.NoError(t, c.State().Err)
			assert.Equal(t, buttonHTML("again"), c.HTML())
		})
	}
}

func TestAllowlistedValidationErrorsStillCommit(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{
			name: "findDOMNode",
			code: `var R = require("react");
exports.default = function Measured() { R.findDOMNode(this); return R.createElement("div", null, "measured"); };`,
			want: `<div>measured</div>`,
		},
		{
			name: "portal",
			code: `var R = require("react");
exports.default = function Tip() { return R.createPortal(R.createElement("i", null, "tip"), null); };`,
			want: `<i>tip</i>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testutil.CreateTestDemo(t, "allow", tt.code)
			c, _ := newController(t, d, Options{Wait: -1})

			require.NoError(t, c.SetSource(testutil.Source(tt.code)))
			waitIdle(c)

			st := c.State()
			assert.NoError(t, st.Err)
			assert.NotNil(t, st.Node)
			assert.Equal(t, tt.want, c.HTML())
		})
	}
}

func TestIdempotentResubmit(t *testing.T) {
	d := testutil.CreateTestDemo(t, "same", button("same"))
	c, clock := newController(t, d, Options{})

	src := testutil.Source(button("same"))
	require.NoError(t, c.SetSource(src))
	waitIdle(c)
	first := c.State()
	firstHTML := c.HTML()

	clock.Advance(DefaultWait)
	require.NoError(t, c.SetSource(src))
	waitIdle(c)
	second := c.State()

	assert.NoError(t, first.Err)
	assert.NoError(t, second.Err)
	assert.NotEqual(t, first.Token, second.Token)
	assert.Equal(t, firstHTML, c.HTML())
	assert.Equal(t, 2, c.Mount().Commits())
}

func TestCustomPipelineBypassesValidator(t *testing.T) {
	code := `exports.default = function Chart() { throw new Error("only the canvas renderer can draw this"); };`
	d := testutil.CreateTestDemo(t, "chart", code)

	renderer := new(testutil.MockRenderer)
	renderer.On("Render", mock.Anything,
		mock.MatchedBy(func(n *render.Node) bool { return n.IsCanvas() }),
		mock.MatchedBy(func(comp sandbox.Component) bool { return comp.Name == "Chart" }),
	).Return(nil).Once()

	var preflighted []string
	preflight := func(_ context.Context, comp sandbox.Component) error {
		preflighted = append(preflighted, comp.Name)
		return nil
	}

	c, _ := newController(t, d, Options{Wait: -1, Render: RenderOptions{
		Compiler:  passthrough,
		Renderer:  renderer,
		Preflight: preflight,
	}})
	require.NoError(t, c.SetSource(testutil.Source(code)))
	waitIdle(c)

	st := c.State()
	assert.NoError(t, st.Err)
	require.NotNil(t, st.Node)
	assert.True(t, st.Node.IsCanvas())
	assert.Equal(t, `<div data-live-canvas="chart"></div>`, c.HTML())
	assert.Equal(t, []string{"Chart"}, preflighted)
	renderer.AssertExpectations(t)
}

func TestCustomPipelineFailures(t *testing.T) {
	d := testutil.CreateTestDemo(t, "chart", button("x"))

	t.Run("preflight", func(t *testing.T) {
		renderer := testutil.NewMockRenderer(t)
		refused := errors.New("preflight refused the component")
		c, _ := newController(t, d, Options{Wait: -1, Render: RenderOptions{
			Compiler:  passthrough,
			Renderer:  renderer,
			Preflight: func(context.Context, sandbox.Component) error { return refused },
		}})

		require.NoError(t, c.SetSource(testutil.Source(button("x"))))
		waitIdle(c)

		st := c.State()
		assert.Same(t, refused, st.Err)
		assert.Nil(t, st.Node)
		renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("renderer", func(t *testing.T) {
		drawErr := errors.New("canvas lost")
		renderer := new(testutil.MockRenderer)
		renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(drawErr)

		c, _ := newController(t, d, Options{Wait: -1, Render: RenderOptions{Compiler: passthrough, Renderer: renderer}})
		require.NoError(t, c.SetSource(testutil.Source(button("x"))))
		waitIdle(c)

		st := c.State()
		assert.Same(t, drawErr, st.Err)
		assert.NotNil(t, st.Node, "the canvas was committed before the renderer ran")
		assert.Equal(t, KindRender, classifyAt(PhaseRendering, st.Err))
	})
}

func TestRendererWithoutCompilerKeepsValidator(t *testing.T) {
	code := `exports.default = function () { throw new Error("render broke"); };`
	d := testutil.CreateTestDemo(t, "lone", code)
	renderer := new(testutil.MockRenderer)

	c, _ := newController(t, d, Options{Wait: -1, Render: RenderOptions{Renderer: renderer}})
	require.NoError(t, c.SetSource(testutil.Source(code)))
	waitIdle(c)

	st := c.State()
	require.Error(t, st.Err)
	assert.Contains(t, st.Err.Error(), "render broke")
	assert.Equal(t, KindRender, Classify(st.Err))
	assert.Nil(t, st.Node)
	assert.Equal(t, "", c.HTML())
	renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, c.SetSource(testutil.Source(button("ok"))))
	waitIdle(c)
	assert.NoError(t, c.State().Err)
	assert.Equal(t, buttonHTML("ok"), c.HTML(), "the built-in mount renders, not the lone renderer")
}

func TestCloseCancelsInFlightWork(t *testing.T) {
	d := testutil.CreateTestDemo(t, "closing", button("x"))
	comp := newGatedCompiler()
	comp.gate(button("x"))

	clock := testutil.NewFakeClock()
	c, err := New(d, Options{Wait: -1, Clock: clock, Render: RenderOptions{Compiler: comp}})
	require.NoError(t, err)

	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.NoError(t, c.SetSource(testutil.Source(button("x"))))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.NoError(t, c.State().Err, "cancellation is not surfaced")
	assert.ErrorIs(t, c.SetSource(testutil.Source(button("y"))), ErrClosed)
	assert.Equal(t, 0, clock.Pending())

	for range updates {
	}
}

func TestSubscribeSeesLatestState(t *testing.T) {
	d := testutil.CreateTestDemo(t, "sub", button("x"))
	c, _ := newController(t, d, Options{Wait: -1})

	updates, unsubscribe := c.Subscribe()
	initial := <-updates
	assert.Equal(t, PhaseIdle, initial.Phase)

	require.NoError(t, c.SetSource(testutil.Source(button("x"))))
	waitIdle(c)

	latest := <-updates
	assert.Equal(t, PhaseCommitted, latest.Outcome)
	unsubscribe()
	unsubscribe()

	_, open := <-updates
	assert.False(t, open)
}

func TestNewValidatesDemo(t *testing.T) {
	noEntry := &demo.Demo{ID: "empty", Asset: demo.Asset{Dependencies: map[string]demo.Dependency{}}}
	_, err := New(noEntry, Options{})
	assert.ErrorIs(t, err, demo.ErrNoEntryFile)

	iframe := testutil.CreateTestDemo(t, "frame", button("x"))
	iframe.Iframe = true
	_, err = New(iframe, Options{})
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{context.Canceled, KindCancelled},
		{bridge.ErrTimeout, KindTimeout},
		{&compiler.Error{Message: "x"}, KindCompile},
		{&sandbox.Error{Kind: sandbox.KindModuleNotFound, Err: errors.New("x")}, KindModuleNotFound},
		{&sandbox.Error{Kind: sandbox.KindTimeout, Err: errors.New("x")}, KindTimeout},
		{&sandbox.Error{Kind: sandbox.KindEvaluation, Err: errors.New("x")}, KindEvaluation},
		{&render.Error{Phase: render.PhaseStatic, Err: errors.New("x")}, KindRender},
		{&bridge.RemoteError{Message: "x"}, KindFrame},
		{bridge.ErrDetached, KindTransport},
		{errors.New("mystery"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}

	assert.Equal(t, KindCompile, classifyAt(PhaseCompiling, errors.New("plain")))
	assert.Equal(t, KindPreflight, classifyAt(PhaseValidating, errors.New("plain")))
}
