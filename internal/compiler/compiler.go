// Package compiler defines the source-to-module compilation step consumed by
// live demos and a client for an out-of-process compile service.
package compiler

import (
	"context"
	"fmt"
	"strings"
)

// Meta describes the file being compiled
type Meta struct {
	Filename string `json:"filename"`
}

// Compiler turns demo source text into module code the sandbox can evaluate
type Compiler interface {
	Compile(ctx context.Context, code string, meta Meta) (string, error)
}

// Func adapts a function to the Compiler interface
type Func func(ctx context.Context, code string, meta Meta) (string, error)

// Compile calls f
func (f Func) Compile(ctx context.Context, code string, meta Meta) (string, error) {
	return f(ctx, code, meta)
}

// Identity returns code unchanged. Sources already written as CommonJS
// modules need no compile step.
var Identity = Func(func(_ context.Context, code string, _ Meta) (string, error) {
	return code, nil
})

// Location points at the offending source position of a diagnostic
type Location struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	LineText string `json:"lineText"`
}

// Diagnostic is one compiler message
type Diagnostic struct {
	Text     string    `json:"text"`
	Location *Location `json:"location,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Location == nil {
		return d.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.Location.File, d.Location.Line, d.Location.Column, d.Text)
}

// Error is a compile failure reported by the compiler itself, as opposed
// to a transport failure reaching it
type Error struct {
	Filename    string
	Message     string
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if len(e.Diagnostics) > 0 {
		sb.WriteString("\n\nErrors:")
		for i, d := range e.Diagnostics {
			fmt.Fprintf(&sb, "\n  %d. %s", i+1, d)
		}
	}
	return sb.String()
}
