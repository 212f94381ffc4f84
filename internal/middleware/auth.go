package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/votegate/internal/auth"
	"github.com/charlesng35/votegate/pkg/errors"
	"github.com/charlesng35/votegate/pkg/response"
)

// HeaderAdminToken authenticates enrollment and audit endpoints.
const HeaderAdminToken = "X-Admin-Token"

// RequireBallotToken enforces a valid ballot token and exposes the registrant
// it was issued for under CtxRegistrantIDKey.
func RequireBallotToken(tokens *iauth.BallotTokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrBallotTokenInvalid)
			c.Abort()
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrBallotTokenInvalid.WithInternal(err))
			c.Abort()
			return
		}

		c.Set(CtxRegistrantIDKey, claims.RegistrantID)
		c.Next()
	}
}

// RequireAdminToken guards operator endpoints with a shared static token. An
// empty configured token disables the guarded routes entirely.
func RequireAdminToken(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		supplied := strings.TrimSpace(c.GetHeader(HeaderAdminToken))
		if supplied == "" {
			supplied, _ = bearerToken(c)
		}
		if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) != 1 {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RegistrantID returns the registrant bound by RequireBallotToken.
func RegistrantID(c *gin.Context) string {
	return c.GetString(CtxRegistrantIDKey)
}

func bearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authz[7:])
	return token, token != ""
}
