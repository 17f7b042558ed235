// Package config provides 12-factor configuration management for the live demo server.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting of source edits
//   - Demo: Throttle window, bridge and sandbox timeouts, demo directory, frame host
//   - Compiler: Optional remote compile service
//   - Paths: Project root, environment name and explicit config file
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - DEMO_THROTTLE_WAIT, DEMO_BRIDGE_TIMEOUT, DEMO_SANDBOX_TIMEOUT, DEMO_DIR, DEMO_FRAME_HOST
//   - COMPILER_URL, COMPILER_RETRIES, COMPILER_TIMEOUT
//   - APP_CWD, APP_ENV, APP_CONFIG_FILE
package config
