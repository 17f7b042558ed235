/*
Package sandbox evaluates compiled demo code as a CommonJS-style module body.

# Overview

Each evaluation gets a fresh ExecutionContext holding its own goja runtime and
the triple the module body may see:

  - module:  an object whose exports property is read back after evaluation
  - exports: the initial module.exports object
  - require: a resolver over the demo's fixed Dependencies mapping

Nothing else from the host is reachable. console.* calls are routed to the
process-wide diagnostics channel, timers are no-ops and process is undefined.

# Isolation

This isolates names, not privileges. A goja runtime shares the Go process, so
demo code must come from the demo author, never from an untrusted party.

# Usage Example

	ev := sandbox.NewEvaluator(sandbox.DefaultConfig())
	ec := ev.NewContext(sandbox.Dependencies{"react": render.Runtime()})

	if err := ev.Evaluate(ctx, code, ec); err != nil {
		var serr *sandbox.Error
		if errors.As(err, &serr) && serr.Kind == sandbox.KindModuleNotFound {
			log.Warn("missing dependency", zap.String("module", serr.Module))
		}
	}

	component, err := ec.Component()

Contexts are single use: evaluating twice in the same context fails with
ErrContextUsed.
*/
package sandbox
