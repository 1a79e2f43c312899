package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logger"
	"storefront/internal/service/identity"
)

// sessionMiddleware resolves who is driving the cart and places the session
// on the request context. A bearer token makes the request authenticated and
// must verify; without one the request gets an anonymous id cookie.
func sessionMiddleware(tokens *identity.Tokens, anon *identity.Anonymous) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sess domain.Session
		if raw, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if tokens == nil {
				writeError(c, http.StatusUnauthorized, "bearer tokens are not accepted")
				c.Abort()
				return
			}
			userID, err := tokens.Verify(raw)
			if err != nil {
				logger.FromGin(c).Info("rejected bearer token", zap.Error(err))
				writeError(c, http.StatusUnauthorized, err.Error())
				c.Abort()
				return
			}
			sess = domain.Session{Authenticated: true, UserID: userID, AnonymousID: anon.Lookup(c.Request)}
		} else {
			id, err := anon.Ensure(c.Writer, c.Request)
			if err != nil {
				logger.FromGin(c).Error("issue anonymous session", zap.Error(err))
				writeError(c, http.StatusInternalServerError, "could not start session")
				c.Abort()
				return
			}
			sess = domain.Session{AnonymousID: id}
		}

		c.Request = c.Request.WithContext(identity.WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
