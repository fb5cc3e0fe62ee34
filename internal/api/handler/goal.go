package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/nextaction_server/internal/api/middleware"
	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/pkg/response"
	"github.com/qs3c/nextaction_server/internal/service"
)

type GoalHandler struct {
	goalService *service.GoalService
}

func NewGoalHandler(goalService *service.GoalService) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
	}
}

// List 当前用户的目标
// GET /goals
func (h *GoalHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	goals, err := h.goalService.List(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}
	if goals == nil {
		goals = []*model.Goal{}
	}

	response.Success(c, goals)
}

// Create 创建目标
// POST /goals
func (h *GoalHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	goal, err := h.goalService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Created(c, goal)
}

// Update 更新目标
// PUT /goals/:id
func (h *GoalHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	goalID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid goal id")
		return
	}

	var req dto.UpdateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	goal, err := h.goalService.Update(c.Request.Context(), userID, goalID, &req)
	if err != nil {
		if errors.Is(err, service.ErrGoalNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, goal)
}

// Delete 删除目标
// DELETE /goals/:id
func (h *GoalHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	goalID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid goal id")
		return
	}

	if err := h.goalService.Delete(c.Request.Context(), userID, goalID); err != nil {
		if errors.Is(err, service.ErrGoalNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.NoContent(c)
}
