// Package scheduler paces bursts of edits into executions.
//
// Throttle enforces a minimum interval between the starts of successive
// executions with leading-edge semantics: the first call of a burst runs
// immediately, later calls inside the window are coalesced and only the most
// recent one runs once the window opens again. Pacing is delegated to a
// golang.org/x/time/rate limiter holding a single token, refilled once per
// interval.
//
// All timing goes through Clock so that tests can drive time explicitly.
package scheduler
