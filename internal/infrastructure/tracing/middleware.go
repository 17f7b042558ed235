package tracing

import (
	"github.com/gin-gonic/gin"
)

// Middleware tags every request with an id. A well-formed id sent by the
// client is kept so edits can be followed from the editor to the logs.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(Header)
		if !accept(requestID) {
			requestID = NewID()
		}

		c.Request = c.Request.WithContext(WithID(c.Request.Context(), requestID))
		c.Header(Header, requestID)
		c.Next()
	}
}
