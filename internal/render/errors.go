package render

import "strings"

// Phase names the render pass that failed
type Phase string

const (
	PhaseStatic Phase = "static"
	PhaseLive   Phase = "live"
)

// Error is a render failure
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Messages of errors that only occur because an interactive component is
// rendered without a document. They do not indicate a broken demo.
var allowlist = []string{
	"Unable to find node on an unmounted component",
	"Portals are not currently supported by the server renderer",
}

// IsAllowlisted reports whether err is a known false positive of static
// rendering
func IsAllowlisted(err error) bool {
	if err == nil {
		return false
	}
	for _, msg := range allowlist {
		if strings.Contains(err.Error(), msg) {
			return true
		}
	}
	return false
}
