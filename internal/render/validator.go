package render

import (
	"context"
	"strings"

	"github.com/GriffinCanCode/livedemo/internal/diagnostics"
)

const layoutEffectWarning = "useLayoutEffect does nothing on the server"

// Validator renders candidate nodes off-screen before they are committed
type Validator struct{}

// NewValidator creates a validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate renders node statically. Allowlisted failures are swallowed; any
// other failure is returned as *Error. The layout effect warning is filtered
// from diagnostics while the render runs.
func (v *Validator) Validate(ctx context.Context, node *Node) error {
	defer diagnostics.Suppress(isLayoutEffectWarning)()

	if _, err := node.RenderStatic(ctx); err != nil {
		if IsAllowlisted(err) {
			return nil
		}
		return &Error{Phase: PhaseStatic, Err: err}
	}
	return nil
}

func isLayoutEffectWarning(e diagnostics.Entry) bool {
	return e.Level == diagnostics.LevelError && strings.Contains(e.Message, layoutEffectWarning)
}
