package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/nextaction_server/internal/pkg/logger"
	"github.com/qs3c/nextaction_server/internal/pkg/response"
	"github.com/qs3c/nextaction_server/internal/service"
)

const upgradeMessage = "You have used all of today's free next actions. Upgrade to Pro for unlimited next actions."

// EntitlementCheck 额度检查中间件，通过时已经记了一次用量
func EntitlementCheck(entitlementSvc *service.EntitlementService, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			return
		}

		allowed, err := entitlementSvc.CheckAndIncrement(c.Request.Context(), userID)
		if err != nil {
			log.Error("entitlement check failed", "user_id", userID, "error", err)
			response.ServerError(c, "")
			return
		}

		if !allowed {
			response.QuotaError(c, upgradeMessage)
			return
		}

		c.Next()
	}
}
