/*
Package resilience provides a circuit breaker for calls to out-of-process
dependencies such as the compile service.

# States

	Closed --[ReadyToTrip]-> Open --[Cooldown]-> Half-Open --[MaxRequests successes]-> Closed
	                                                 |
	                                             [failure]
	                                                 v
	                                               Open

While open, Do returns ErrCircuitOpen without calling the dependency. While
half-open, at most MaxRequests trial calls run and any extra call gets
ErrTooManyRequests.

# Usage

	breaker := resilience.New("compiler", resilience.Settings{
		Cooldown:  30 * time.Second,
		IsFailure: func(err error) bool { return err != nil && !isAnswer(err) },
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state changed", zap.Stringer("to", to))
		},
	})

	err := breaker.Do(ctx, func(ctx context.Context) error {
		return client.Call(ctx)
	})

IsFailure decides which errors count against the dependency. Context
cancellation from the caller is never counted.
*/
package resilience
