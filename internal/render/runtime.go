package render

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/livedemo/internal/diagnostics"
	"github.com/GriffinCanCode/livedemo/internal/sandbox"
)

const (
	ElementType  = "live.element"
	PortalType   = "live.portal"
	FragmentType = "live.fragment"

	// ModuleName is the dependency name demos import the runtime under
	ModuleName = "react"

	hostKey = "__liveHost"
)

const runtimeSource = `(function (host) {
  "use strict";

  function createElement(type, config) {
    var props = {};
    var key = null;
    if (config != null) {
      for (var k in config) {
        if (k === "key") {
          key = String(config[k]);
          continue;
        }
        props[k] = config[k];
      }
    }
    var n = arguments.length - 2;
    if (n === 1) {
      props.children = arguments[2];
    } else if (n > 1) {
      props.children = Array.prototype.slice.call(arguments, 2);
    }
    if (type != null && type.defaultProps) {
      for (var d in type.defaultProps) {
        if (props[d] === undefined) props[d] = type.defaultProps[d];
      }
    }
    return { $$typeof: "` + ElementType + `", type: type, key: key, props: props };
  }

  function isValidElement(v) {
    return v != null && typeof v === "object" && v.$$typeof === "` + ElementType + `";
  }

  function useState(initial) {
    return [typeof initial === "function" ? initial() : initial, function () {}];
  }

  function useReducer(reducer, initial, init) {
    return [init ? init(initial) : initial, function () {}];
  }

  function useRef(initial) {
    return { current: initial === undefined ? null : initial };
  }

  function useMemo(factory) {
    return factory();
  }

  function useCallback(fn) {
    return fn;
  }

  function useEffect(effect) {
    if (!host.static) host.effects.push(effect);
  }

  function useLayoutEffect(effect) {
    if (host.static) {
      host.diagnostic(
        "Warning: useLayoutEffect does nothing on the server, because its effect cannot " +
          "be encoded into the server renderer's output format."
      );
      return;
    }
    host.effects.push(effect);
  }

  function findDOMNode() {
    if (host.static) {
      throw new Error("Unable to find node on an unmounted component.");
    }
    return null;
  }

  function createPortal(children, container) {
    return { $$typeof: "` + PortalType + `", children: children, container: container };
  }

  host.flushEffects = function () {
    var effects = host.effects;
    host.effects = [];
    for (var i = 0; i < effects.length; i++) effects[i]();
  };

  return {
    createElement: createElement,
    Fragment: "` + FragmentType + `",
    isValidElement: isValidElement,
    useState: useState,
    useReducer: useReducer,
    useRef: useRef,
    useMemo: useMemo,
    useCallback: useCallback,
    useEffect: useEffect,
    useLayoutEffect: useLayoutEffect,
    findDOMNode: findDOMNode,
    createPortal: createPortal,
    version: "live"
  };
})`

// runtimeProgram is compiled on first use and shared by every runtime
var runtimeProgram = sync.OnceValues(func() (*goja.Program, error) {
	return goja.Compile("live-runtime.js", runtimeSource, true)
})

// Runtime returns the Loader that installs the component runtime into a
// sandbox context
func Runtime() sandbox.Loader {
	return func(vm *goja.Runtime) (goja.Value, error) {
		prog, err := runtimeProgram()
		if err != nil {
			return nil, fmt.Errorf("compile component runtime: %w", err)
		}
		val, err := vm.RunProgram(prog)
		if err != nil {
			return nil, err
		}
		factory, ok := goja.AssertFunction(val)
		if !ok {
			return nil, fmt.Errorf("component runtime is not a factory")
		}
		return factory(goja.Undefined(), installHost(vm))
	}
}

// HostModules is the registry NPM dependencies resolve against
func HostModules() sandbox.Dependencies {
	return sandbox.Dependencies{"react": Runtime()}
}

// installHost returns the host object for vm, creating it on first use. The
// host carries the render mode and the queued effects.
func installHost(vm *goja.Runtime) *goja.Object {
	if h := lookupHost(vm); h != nil {
		return h
	}

	host := vm.NewObject()
	_ = host.Set("static", false)
	_ = host.Set("effects", vm.NewArray())
	_ = host.Set("diagnostic", func(call goja.FunctionCall) goja.Value {
		diagnostics.Emit(diagnostics.Entry{
			Level:   diagnostics.LevelError,
			Message: call.Argument(0).String(),
		})
		return goja.Undefined()
	})
	_ = vm.GlobalObject().DefineDataProperty(hostKey, host, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	return host
}

func lookupHost(vm *goja.Runtime) *goja.Object {
	v := vm.GlobalObject().Get(hostKey)
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	obj, _ := v.(*goja.Object)
	return obj
}
