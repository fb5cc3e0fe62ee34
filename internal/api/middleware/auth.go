package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/pkg/identity"
	"github.com/qs3c/nextaction_server/internal/pkg/logger"
	"github.com/qs3c/nextaction_server/internal/pkg/response"
)

const (
	UserIDKey  = "userID"
	ProfileKey = "profile"
)

// Authenticator 校验 bearer token 并返回调用者资料
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*dto.Profile, error)
}

// UserSyncer 把身份提供方资料同步成本地用户
type UserSyncer interface {
	SyncProfile(ctx context.Context, profile *dto.Profile) (*model.User, error)
}

// Auth 认证中间件：校验 token，创建或更新本地用户，把用户 ID 放进上下文
func Auth(authn Authenticator, users UserSyncer, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "missing authorization header")
			return
		}

		token, ok := identity.ExtractBearerToken(authHeader)
		if !ok {
			response.AuthError(c, "invalid authorization header")
			return
		}

		profile, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			log.Debug("auth failure", "path", c.Request.URL.Path, "error", err)
			response.AuthError(c, "invalid token")
			return
		}

		user, err := users.SyncProfile(c.Request.Context(), profile)
		if err != nil {
			log.Error("failed to sync user", "external_id", profile.ExternalID, "error", err)
			response.ServerError(c, "")
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set(ProfileKey, profile)
		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}
