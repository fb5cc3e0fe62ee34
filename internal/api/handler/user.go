package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/nextaction_server/internal/api/middleware"
	"github.com/qs3c/nextaction_server/internal/pkg/response"
	"github.com/qs3c/nextaction_server/internal/service"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// Me 获取当前用户及套餐状态。用户记录已由认证中间件同步
// GET /me
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.userService.Me(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}
