// Package diagnostics is the process-wide channel for console output emitted
// by sandboxed demo code.
//
// The channel mirrors a global console: every sandbox writes to the same
// sink. Suppress swaps in a filtering wrapper for the duration of a scope and
// is serialized, so two suppression windows never interleave.
package diagnostics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Level of a diagnostic entry
type Level string

const (
	LevelLog   Level = "log"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Entry is a single console call
type Entry struct {
	Level   Level
	Message string
	Time    time.Time
}

// Sink receives diagnostic entries
type Sink func(Entry)

var (
	current atomic.Pointer[Sink]
	scope   sync.Mutex
)

func init() {
	SetSink(ZapSink())
}

// ZapSink forwards entries to the global zap logger
func ZapSink() Sink {
	return func(e Entry) {
		logger := zap.L().With(zap.String("source", "sandbox"))
		switch e.Level {
		case LevelError:
			logger.Error(e.Message)
		case LevelWarn:
			logger.Warn(e.Message)
		case LevelInfo:
			logger.Info(e.Message)
		default:
			logger.Debug(e.Message)
		}
	}
}

// SetSink replaces the process-wide sink and returns the previous one
func SetSink(s Sink) Sink {
	prev := current.Swap(&s)
	if prev == nil {
		return nil
	}
	return *prev
}

// Emit writes an entry to the current sink
func Emit(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if s := current.Load(); s != nil && *s != nil {
		(*s)(e)
	}
}

// Errorf emits an error-level entry
func Errorf(format string, args ...any) {
	Emit(Entry{Level: LevelError, Message: fmt.Sprintf(format, args...)})
}

// Suppress installs a wrapper that drops entries matching drop and returns a
// function restoring the previous sink. The caller must invoke restore on
// every exit path, typically with defer. Concurrent callers block until the
// active window is restored.
func Suppress(drop func(Entry) bool) (restore func()) {
	scope.Lock()

	prev := current.Load()
	wrapped := Sink(func(e Entry) {
		if drop(e) {
			return
		}
		if prev != nil && *prev != nil {
			(*prev)(e)
		}
	})
	current.Store(&wrapped)

	var once sync.Once
	return func() {
		once.Do(func() {
			current.Store(prev)
			scope.Unlock()
		})
	}
}
