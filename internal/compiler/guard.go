package compiler

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/livedemo/internal/infrastructure/resilience"
)

// Guard routes compiles through breaker. Compile errors are answers from a
// healthy compiler and do not count against it.
func Guard(c Compiler, breaker *resilience.Breaker) Compiler {
	return Func(func(ctx context.Context, code string, meta Meta) (string, error) {
		var out string
		err := breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = c.Compile(ctx, code, meta)
			return err
		})
		return out, err
	})
}

// IsOutage reports whether err means the compiler could not be reached
// rather than that the code failed to compile
func IsOutage(err error) bool {
	if err == nil {
		return false
	}
	var compileErr *Error
	return !errors.As(err, &compileErr)
}
