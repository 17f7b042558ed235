package sandbox

import (
	"errors"
	"time"

	"github.com/dop251/goja"
)

var (
	ErrContextUsed     = errors.New("execution context already evaluated")
	ErrNoDefaultExport = errors.New("module has no default export")
)

// Config defines evaluator configuration
type Config struct {
	Timeout          time.Duration // Execution timeout, 0 disables it
	MaxCallStackSize int           // Maximum JS call depth
	EnableConsole    bool          // Route console.* to diagnostics
}

// DefaultConfig returns the evaluator defaults
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
		EnableConsole:    true,
	}
}

// Loader builds a module value inside a specific runtime. Modules that need
// runtime-bound functions, such as the component runtime, are supplied as
// Loaders; plain Go values are converted with ToValue.
type Loader func(vm *goja.Runtime) (goja.Value, error)

// Dependencies is the fixed module-name to value mapping consulted by require
type Dependencies map[string]any

// Lookup returns the value registered under name
func (d Dependencies) Lookup(name string) (any, error) {
	v, ok := d[name]
	if !ok {
		return nil, &ModuleNotFoundError{Name: name}
	}
	return v, nil
}

// ModuleNotFoundError is raised by require for unknown names
type ModuleNotFoundError struct {
	Name string
}

func (e *ModuleNotFoundError) Error() string {
	return "Cannot find module: " + e.Name
}

// Kind classifies evaluation failures
type Kind string

const (
	KindModuleNotFound Kind = "module_not_found"
	KindEvaluation     Kind = "evaluation"
	KindTimeout        Kind = "timeout"
)

// Error is returned by Evaluate
type Error struct {
	Kind   Kind
	Module string // Set for KindModuleNotFound
	Err    error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Component is the value a demo module exports for rendering
type Component struct {
	Runtime *goja.Runtime
	Value   goja.Value
	Name    string
}
