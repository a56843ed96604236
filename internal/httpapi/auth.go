package httpapi

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/whisper/ws-relay/internal/apierr"
)

// authGuard returns a gin middleware that enforces a bearer token on the
// routes it is attached to. When token is empty the guard is disabled
// globally and every request passes through unchecked, matching the
// upstream proxy's "no configured token means no auth" semantics.
func authGuard(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			fail(c, apierr.NoAuthentication())
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(header), []byte(token)) != 1 {
			fail(c, apierr.BadAuthentication())
			c.Abort()
			return
		}

		c.Next()
	}
}
