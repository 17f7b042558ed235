// Package middleware provides the HTTP middleware of the live demo server.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing so documentation sites can embed previews
//   - RateLimit: Per-IP token bucket limiting of source edits
//   - Logger: One zap line per request
//
// Rate Limiting:
//   - Per-IP tracking with idle client eviction
//   - Token bucket algorithm from golang.org/x/time/rate
//   - Retry-After on rejection
//   - Global rate limiting option
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	edits.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
