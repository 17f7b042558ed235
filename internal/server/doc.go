// Package server provides HTTP server setup and initialization for the live
// demo service.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (recovery, request ids, request logging, metrics, CORS, rate limiting)
//   - Project layout resolution and demo manifest loading
//   - Optional remote compile service behind a circuit breaker
//   - Demo catalogue with in-process or relayed iframe hosts
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger and install it as the global zap logger
//  3. Resolve the project layout and load demo manifests
//  4. Register Prometheus collectors
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server
//  7. Graceful shutdown on signal: drain requests, then close every demo
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
