package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

type corsPassKey struct{}

// corsPass carries the gin context through the shared go-chi chain and
// records whether the request was handed on.
type corsPass struct {
	c      *gin.Context
	passed bool
}

// CORS adapts go-chi/cors to gin. An empty origin list allows any origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	chain := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", HeaderAdminToken, HeaderRequestID},
		ExposedHeaders: []string{HeaderRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}).Handler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		pass, ok := r.Context().Value(corsPassKey{}).(*corsPass)
		if !ok {
			return
		}
		pass.passed = true
		pass.c.Next()
	}))

	return func(c *gin.Context) {
		pass := &corsPass{c: c}
		chain.ServeHTTP(c.Writer, c.Request.WithContext(context.WithValue(c.Request.Context(), corsPassKey{}, pass)))

		// Preflight requests are answered by the cors handler itself.
		if !pass.passed {
			c.Abort()
		}
	}
}
