package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stagepay/internal/handler"
	"stagepay/internal/model"
	"stagepay/pkg/rbac"
)

// RequirePermission 中间件：要求调用者的角色具有指定权限
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(handler.ActorKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated", "code": "unauthenticated"})
			return
		}

		actor, ok := v.(model.Actor)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "invalid actor", "code": "internal"})
			return
		}

		if err := rbac.CheckPermission(actor.UserID, string(actor.Role), permission); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "forbidden"})
			return
		}

		c.Next()
	}
}
