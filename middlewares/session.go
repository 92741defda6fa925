package middlewares

import (
	"context"

	"github.com/citada/supplier-portal/models"
	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

type identityKey struct{}

// WithIdentity attaches the authenticated caller to ctx.
func WithIdentity(ctx context.Context, ident models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}

func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(models.Identity)
	return ident, ok
}

// ContextAuthenticator answers "who is calling" from the request context
// populated by AuthMiddleware.
type ContextAuthenticator struct{}

func (ContextAuthenticator) CurrentUser(ctx context.Context) (*models.Identity, error) {
	ident, ok := IdentityFromContext(ctx)
	if !ok || ident.UserID == "" {
		return nil, nil
	}
	return &ident, nil
}

// GetSession returns the session AuthMiddleware stored on c.
func GetSession(c *gin.Context) (models.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return models.Session{}, false
	}
	s, ok := v.(models.Session)
	return s, ok
}
