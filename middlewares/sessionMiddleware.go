package middlewares

import (
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionMiddleware captures per-request metadata the audit pipeline needs:
// client ip, user agent, and a correlation id (propagated from the
// X-Correlation-Id header or freshly minted).
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationId := c.Request.Header.Get("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}

		ctx := utils.SetIpAddressInContext(c.Request.Context(), c.ClientIP())
		ctx = utils.SetUserAgentInContext(ctx, c.Request.UserAgent())
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set("X-Correlation-Id", correlationId)
		c.Next()
	}
}
