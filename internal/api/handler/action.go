package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/nextaction_server/internal/api/middleware"
	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/pkg/logger"
	"github.com/qs3c/nextaction_server/internal/pkg/response"
	"github.com/qs3c/nextaction_server/internal/service"
)

type ActionHandler struct {
	recService *service.RecommendationService
	log        *logger.Logger
}

func NewActionHandler(recService *service.RecommendationService, log *logger.Logger) *ActionHandler {
	return &ActionHandler{
		recService: recService,
		log:        log,
	}
}

// NextAction 生成下一步行动。请求体由 BindJSON 校验，额度已由 EntitlementCheck 扣除
// POST /next-action
func (h *ActionHandler) NextAction(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	req, ok := middleware.Body[dto.NextActionRequest](c)
	if !ok {
		req = &dto.NextActionRequest{}
		if err := c.ShouldBindJSON(req); err != nil {
			response.ValidationError(c, err)
			return
		}
	}

	rec, err := h.recService.Generate(c.Request.Context(), userID, req)
	if err != nil {
		h.log.Error("next action generation failed", "user_id", userID, "error", err)
		if errors.Is(err, service.ErrGenerationFailed) {
			response.Error(c, response.CodeGenerationFailed, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, rec)
}

// History 最近 20 条推荐
// GET /history
func (h *ActionHandler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	recs, err := h.recService.History(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}
	if recs == nil {
		recs = []*model.Recommendation{}
	}

	response.Success(c, recs)
}

// Feedback 对推荐提交反馈
// POST /feedback
func (h *ActionHandler) Feedback(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	fb, err := h.recService.SubmitFeedback(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrRecommendationNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, fb)
}
