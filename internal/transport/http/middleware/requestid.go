package middleware

import (
	"github.com/ErlanBelekov/backup-desk/internal/requestid"
	"github.com/gin-gonic/gin"
)

// RequestID keeps a well-formed inbound X-Request-ID and replaces anything
// else with a fresh UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestid.FromHeader(c.GetHeader(requestid.Header))

		ctx := requestid.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestid.Header, id)
		c.Next()
	}
}
