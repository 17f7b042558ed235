// Package main is the entry point for the live demo server.
//
// The server loads demo manifests, runs each demo's source through the
// sandbox on every edit and serves the resulting preview over HTTP.
//
// Architecture:
//
//	Editor → POST /api/demos/:id/source → Controller → Sandbox → Mount
//	                                                 → Frame host (local or websocket)
//
// The server provides:
//   - REST API for demo state and edits
//   - WebSocket endpoint for out-of-process frame hosts
//   - Prometheus metrics
//   - Rate limiting of edits
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -cwd /srv/site
//
//	# Development mode (colored logs, debug level)
//	./server -dev -demos ./demos
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
