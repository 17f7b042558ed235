// Package logging provides structured logging using uber/zap.
//
// Two encodings are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Live demo controllers log through ForDemo, and each scheduled task
// through ForTask, so every line about a task carries both the demo id and
// the task token.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.ForDemo(d.ID).Info("demo opened", zap.Bool("iframe", d.Iframe))
package logging
