/*
Package tracing tags HTTP requests with a request id.

Middleware reads X-Request-ID from the request, or generates a UUID when the
header is missing or malformed, stores it on the request context and echoes
it in the response. Field turns the id into a zap field so access logs and
handler logs for the same request can be joined.

	router.Use(tracing.Middleware())
	logger.Info("source accepted", tracing.Field(c.Request.Context()))
*/
package tracing
