package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/livedemo/internal/diagnostics"
)

// Evaluator executes module bodies inside ExecutionContexts
type Evaluator struct {
	config Config
}

// NewEvaluator creates an evaluator
func NewEvaluator(config Config) *Evaluator {
	if config.MaxCallStackSize <= 0 {
		config.MaxCallStackSize = DefaultConfig().MaxCallStackSize
	}
	return &Evaluator{config: config}
}

// Config returns the evaluator configuration
func (e *Evaluator) Config() Config {
	return e.config
}

// ExecutionContext is the ephemeral {module, exports, require} triple for a
// single evaluation, together with the runtime it lives in
type ExecutionContext struct {
	vm      *goja.Runtime
	module  *goja.Object
	exports *goja.Object
	deps    Dependencies
	cache   map[string]goja.Value
	missing []string
	used    bool
}

// NewContext creates a fresh context over deps
func (e *Evaluator) NewContext(deps Dependencies) *ExecutionContext {
	vm := goja.New()
	vm.SetMaxCallStackSize(e.config.MaxCallStackSize)
	setupGlobals(vm, e.config)

	exports := vm.NewObject()
	module := vm.NewObject()
	_ = module.Set("exports", exports)

	return &ExecutionContext{
		vm:      vm,
		module:  module,
		exports: exports,
		deps:    deps,
		cache:   make(map[string]goja.Value),
	}
}

// Evaluate runs code as a module body with module, exports and require bound.
// Exceptions are returned as *Error; nothing is recovered here.
func (e *Evaluator) Evaluate(ctx context.Context, code string, ec *ExecutionContext) error {
	if ec.used {
		return ErrContextUsed
	}
	ec.used = true

	wrapped := "(function (module, exports, require) {\n" + code + "\n})"
	prog, err := goja.Compile("demo.js", wrapped, false)
	if err != nil {
		return &Error{Kind: KindEvaluation, Err: err}
	}

	err = Guard(ctx, ec.vm, e.config.Timeout, func() error {
		val, err := ec.vm.RunProgram(prog)
		if err != nil {
			return err
		}
		fn, ok := goja.AssertFunction(val)
		if !ok {
			return fmt.Errorf("module wrapper is not callable")
		}
		_, err = fn(goja.Undefined(), ec.module, ec.exports, ec.vm.ToValue(ec.requireFunc))
		return err
	})
	if err != nil {
		return ec.classify(err)
	}
	return nil
}

// Guard runs fn on vm, interrupting it when ctx is cancelled or timeout
// elapses. The interrupt flag is always cleared before Guard returns so the
// runtime stays usable.
func Guard(ctx context.Context, vm *goja.Runtime, timeout time.Duration, fn func() error) (err error) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	go func() {
		defer wg.Done()
		select {
		case <-timerC:
			vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	defer func() {
		close(done)
		wg.Wait()
		vm.ClearInterrupt()
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during evaluation: %v", r)
		}
	}()

	return fn()
}

// Require resolves name against the context's dependencies
func (c *ExecutionContext) Require(name string) (goja.Value, error) {
	if v, ok := c.cache[name]; ok {
		return v, nil
	}

	raw, err := c.deps.Lookup(name)
	if err != nil {
		c.missing = append(c.missing, name)
		return nil, err
	}

	var v goja.Value
	switch m := raw.(type) {
	case Loader:
		v, err = m(c.vm)
		if err != nil {
			return nil, fmt.Errorf("load module %s: %w", name, err)
		}
	case goja.Value:
		v = m
	default:
		v = c.vm.ToValue(m)
	}
	c.cache[name] = v
	return v, nil
}

func (c *ExecutionContext) requireFunc(call goja.FunctionCall) goja.Value {
	v, err := c.Require(call.Argument(0).String())
	if err != nil {
		panic(c.vm.NewGoError(err))
	}
	return v
}

func (c *ExecutionContext) classify(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	msg := err.Error()
	for _, name := range c.missing {
		if strings.Contains(msg, (&ModuleNotFoundError{Name: name}).Error()) {
			return &Error{Kind: KindModuleNotFound, Module: name, Err: err}
		}
	}
	return &Error{Kind: KindEvaluation, Err: err}
}

// Runtime returns the runtime the module was evaluated in
func (c *ExecutionContext) Runtime() *goja.Runtime {
	return c.vm
}

// Exports returns the final value of module.exports
func (c *ExecutionContext) Exports() goja.Value {
	return c.module.Get("exports")
}

// Component returns exports.default, falling back to module.exports itself
// when the module assigned a function to it
func (c *ExecutionContext) Component() (Component, error) {
	exports := c.Exports()
	if exports == nil || goja.IsUndefined(exports) || goja.IsNull(exports) {
		return Component{}, ErrNoDefaultExport
	}

	value := exports
	if obj, ok := exports.(*goja.Object); ok {
		if def := obj.Get("default"); def != nil && !goja.IsUndefined(def) && !goja.IsNull(def) {
			value = def
		} else if _, callable := goja.AssertFunction(exports); !callable {
			return Component{}, ErrNoDefaultExport
		}
	}

	return Component{
		Runtime: c.vm,
		Value:   value,
		Name:    componentName(c.vm, value),
	}, nil
}

func componentName(vm *goja.Runtime, v goja.Value) string {
	obj := v.ToObject(vm)
	for _, key := range []string{"displayName", "name"} {
		if n := obj.Get(key); n != nil && !goja.IsUndefined(n) && n.String() != "" {
			return n.String()
		}
	}
	return "Anonymous"
}

// setupGlobals removes host-facing globals and installs console and timers
func setupGlobals(vm *goja.Runtime, config Config) {
	_ = vm.Set("process", goja.Undefined())
	_ = vm.Set("require", goja.Undefined())
	_ = vm.Set("module", goja.Undefined())
	_ = vm.Set("exports", goja.Undefined())

	if config.EnableConsole {
		console := vm.NewObject()
		for _, level := range []diagnostics.Level{
			diagnostics.LevelLog,
			diagnostics.LevelInfo,
			diagnostics.LevelWarn,
			diagnostics.LevelError,
		} {
			_ = console.Set(string(level), makeConsoleFunc(level))
		}
		_ = vm.Set("console", console)
	}

	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = vm.Set("setTimeout", noop)
	_ = vm.Set("setInterval", noop)
	_ = vm.Set("clearTimeout", noop)
	_ = vm.Set("clearInterval", noop)
}

func makeConsoleFunc(level diagnostics.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		diagnostics.Emit(diagnostics.Entry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		return goja.Undefined()
	}
}
