package middlewares

import (
	"fmt"
	"net/http"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
)

// RoleCheck lets the request through only for the listed roles.
func RoleCheck(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, exists := GetSession(c)
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}

		for _, role := range roles {
			if session.Role == role {
				c.Next()
				return
			}
		}
		utils.RespondError(c, http.StatusForbidden, fmt.Errorf("%s access required", roles[0]))
		c.Abort()
	}
}
