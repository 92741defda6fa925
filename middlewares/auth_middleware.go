package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware verifies the bearer token and stores the caller's session.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Authorization header missing"))
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid token format"))
			c.Abort()
			return
		}

		if err := authenticate(c, strings.TrimPrefix(authHeader, "Bearer ")); err != nil {
			utils.RespondError(c, http.StatusUnauthorized, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// authenticate parses the token and installs the session on the gin context
// and the identity on the request context.
func authenticate(c *gin.Context, tokenString string) error {
	claims, err := utils.ParseToken(tokenString)
	if err != nil || claims == nil {
		return errors.New("Invalid or expired token")
	}
	if claims.UserID == "" {
		return errors.New("Invalid user ID in token")
	}
	role := models.Role(claims.Role)
	if !role.Valid() {
		return errors.New("Invalid role in token")
	}

	session := models.Session{Role: role, UserID: claims.UserID, Email: models.NormalizeEmail(claims.Email)}
	c.Set(sessionKey, session)
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), models.Identity{
		UserID: claims.UserID,
		Email:  session.Email,
	}))
	return nil
}
