/*
Package monitoring provides Prometheus metrics for the live demo service.

# Overview

Collectors are registered on an injected prometheus.Registerer so tests can
use a private registry. A nil *Metrics is valid and records nothing.

# Metrics

- HTTP request metrics (latency, throughput, size)
- Demo task metrics (started, settled by outcome, failures by kind,
  duration, loading indicators shown, throttled edits)
- Frame metrics (attached peers, messages by direction and type)
- Circuit breaker state per dependency
- Uptime

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
