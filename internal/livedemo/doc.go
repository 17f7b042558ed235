// Package livedemo runs edited demo source and keeps the latest result
// visible.
//
// A Controller exists per open demo. SetSource may be called on every
// keystroke: calls are throttled with leading-edge semantics, each executed
// call becomes a task with a fresh token, and only the task holding the
// current token may change observable state. Older tasks keep running
// until their blocking step returns, but their results are dropped.
//
// Tasks take one of three paths:
//   - default: compile, evaluate in the sandbox, validate off-screen, commit
//   - custom pipeline: compile, evaluate, preflight, commit a canvas and
//     hand the component to the external renderer
//   - iframe: post the raw source through the bridge and adopt the reply
//
// Failures never clear the last committed node.
package livedemo
