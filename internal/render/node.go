package render

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/livedemo/internal/sandbox"
)

type nodeKind int

const (
	kindElement nodeKind = iota
	kindCanvas
)

// Node is a renderable committed to a demo's visible surface. Element nodes
// wrap a sandboxed component; canvas nodes are placeholders an external
// renderer draws into.
type Node struct {
	mu        sync.Mutex
	kind      nodeKind
	component sandbox.Component
	element   goja.Value
	canvasID  string
	timeout   time.Duration
}

// NewElementNode builds the element for component with empty props
func NewElementNode(component sandbox.Component, timeout time.Duration) *Node {
	vm := component.Runtime
	el := vm.NewObject()
	_ = el.Set("$$typeof", ElementType)
	_ = el.Set("type", component.Value)
	_ = el.Set("key", goja.Null())
	_ = el.Set("props", vm.NewObject())

	return &Node{
		kind:      kindElement,
		component: component,
		element:   el,
		timeout:   timeout,
	}
}

// NewCanvasNode creates a placeholder for an externally rendered component
func NewCanvasNode(id string) *Node {
	return &Node{kind: kindCanvas, canvasID: id}
}

// IsCanvas reports whether n is a placeholder for an external renderer
func (n *Node) IsCanvas() bool {
	return n.kind == kindCanvas
}

// Component returns the component an element node renders
func (n *Node) Component() sandbox.Component {
	return n.component
}

// RenderStatic renders the node without effects, as a server renderer would
func (n *Node) RenderStatic(ctx context.Context) (string, error) {
	if n.kind == kindCanvas {
		return n.canvasMarkup(), nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	vm := n.component.Runtime
	host := installHost(vm)
	_ = host.Set("static", true)
	defer func() { _ = host.Set("static", false) }()

	var markup string
	err := sandbox.Guard(ctx, vm, n.timeout, func() error {
		var err error
		markup, err = (&walker{vm: vm, mode: modeStatic}).renderToString(n.element)
		return err
	})
	return markup, err
}

// RenderLive renders the node for display and flushes queued effects. A
// failure is caught by the error boundary: the returned markup shows the
// error and err reports it.
func (n *Node) RenderLive(ctx context.Context) (string, error) {
	if n.kind == kindCanvas {
		return n.canvasMarkup(), nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	vm := n.component.Runtime
	host := installHost(vm)
	_ = host.Set("effects", vm.NewArray())

	var markup string
	err := sandbox.Guard(ctx, vm, n.timeout, func() error {
		var err error
		markup, err = (&walker{vm: vm, mode: modeLive}).renderToString(n.element)
		if err != nil {
			return err
		}
		if flush, ok := goja.AssertFunction(host.Get("flushEffects")); ok {
			_, err = flush(host)
		}
		return err
	})
	if err != nil {
		return boundaryMarkup(err), &Error{Phase: PhaseLive, Err: err}
	}
	return markup, nil
}

func (n *Node) canvasMarkup() string {
	return fmt.Sprintf(`<div data-live-canvas="%s"></div>`, html.EscapeString(n.canvasID))
}

func boundaryMarkup(err error) string {
	return fmt.Sprintf(`<div class="demo-error" role="alert"><pre>%s</pre></div>`, html.EscapeString(err.Error()))
}
