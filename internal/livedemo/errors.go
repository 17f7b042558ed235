package livedemo

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/livedemo/internal/bridge"
	"github.com/GriffinCanCode/livedemo/internal/compiler"
	"github.com/GriffinCanCode/livedemo/internal/render"
	"github.com/GriffinCanCode/livedemo/internal/sandbox"
)

var (
	ErrClosed       = errors.New("live demo closed")
	ErrNoFrame      = errors.New("iframe demo needs a frame")
	ErrMissingEntry = errors.New("entry file missing from source")

	errStale = errors.New("task superseded")
)

// ErrorKind classifies task failures for logs and metrics
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindCompile        ErrorKind = "compile"
	KindModuleNotFound ErrorKind = "module_not_found"
	KindEvaluation     ErrorKind = "evaluation"
	KindTimeout        ErrorKind = "timeout"
	KindRender         ErrorKind = "render"
	KindPreflight      ErrorKind = "preflight"
	KindFrame          ErrorKind = "frame"
	KindTransport      ErrorKind = "transport"
	KindCancelled      ErrorKind = "cancelled"
	KindUnknown        ErrorKind = "unknown"
)

// Classify maps an error to its kind using its type alone
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		cerr   *compiler.Error
		serr   *sandbox.Error
		rerr   *render.Error
		remote *bridge.RemoteError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, bridge.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &cerr):
		return KindCompile
	case errors.As(err, &serr):
		switch serr.Kind {
		case sandbox.KindModuleNotFound:
			return KindModuleNotFound
		case sandbox.KindTimeout:
			return KindTimeout
		default:
			return KindEvaluation
		}
	case errors.Is(err, sandbox.ErrNoDefaultExport):
		return KindEvaluation
	case errors.As(err, &rerr):
		return KindRender
	case errors.As(err, &remote):
		return KindFrame
	case errors.Is(err, bridge.ErrDetached), errors.Is(err, bridge.ErrClosed):
		return KindTransport
	}
	return KindUnknown
}

// classifyAt refines Classify with the phase the task failed in, since a
// compiler or preflight hook may return arbitrary errors
func classifyAt(phase Phase, err error) ErrorKind {
	kind := Classify(err)
	if kind != KindUnknown {
		return kind
	}
	switch phase {
	case PhaseCompiling:
		return KindCompile
	case PhaseEvaluating:
		return KindEvaluation
	case PhaseValidating:
		return KindPreflight
	case PhaseBridging:
		return KindTransport
	case PhaseRendering:
		return KindRender
	}
	return KindUnknown
}
