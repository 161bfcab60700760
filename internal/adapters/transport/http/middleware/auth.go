package middleware

import (
	"context"
	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/gin-gonic/gin"
	"net/http"
	"strings"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	identityKey = "account.identity"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (model.Identity, error)
}

// AccessToken берёт access-токен из cookie, иначе из заголовка
// Authorization.
func AccessToken(c *gin.Context) string {
	if tok, err := c.Cookie(AccessCookie); err == nil && tok != "" {
		return tok
	}
	h := c.GetHeader("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.Authenticate(c.Request.Context(), AccessToken(c))
		switch {
		case err == nil:
		case customErrors.IsUnauthenticated(err), customErrors.IsInvalidToken(err):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized request"})
			return
		default:
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// IdentityFrom возвращает личность, прикреплённую RequireAuth.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	return id, ok
}
