package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// requestContext returns the request context, which carries the audit
// actor set by middleware.Actor.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}
