package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/nextaction_server/internal/api/middleware"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/pkg/billing"
	"github.com/qs3c/nextaction_server/internal/pkg/logger"
	"github.com/qs3c/nextaction_server/internal/pkg/response"
	"github.com/qs3c/nextaction_server/internal/service"
)

// Stripe 单个事件不会超过 64KB
const maxWebhookBodyBytes = 65536

const signatureHeader = "Stripe-Signature"

type BillingHandler struct {
	billingService     *service.BillingService
	entitlementService *service.EntitlementService
	log                *logger.Logger
}

func NewBillingHandler(billingService *service.BillingService, entitlementService *service.EntitlementService, log *logger.Logger) *BillingHandler {
	return &BillingHandler{
		billingService:     billingService,
		entitlementService: entitlementService,
		log:                log,
	}
}

// Status 当前套餐与今日用量
// GET /billing/status
func (h *BillingHandler) Status(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	status, err := h.entitlementService.GetStatus(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, status)
}

// CreateCheckoutSession 创建订阅结账页面
// POST /billing/create-checkout-session
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	url, err := h.billingService.CreateCheckoutSession(c.Request.Context(), userID)
	if err != nil {
		h.handleSessionError(c, userID, err)
		return
	}

	response.Success(c, dto.SessionURLResponse{URL: url})
}

// CreatePortalSession 创建订阅管理页面
// POST /billing/create-portal-session
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	url, err := h.billingService.CreatePortalSession(c.Request.Context(), userID)
	if err != nil {
		h.handleSessionError(c, userID, err)
		return
	}

	response.Success(c, dto.SessionURLResponse{URL: url})
}

func (h *BillingHandler) handleSessionError(c *gin.Context, userID int64, err error) {
	switch {
	case errors.Is(err, service.ErrNoBillingCustomer):
		response.Error(c, response.CodeNoBillingAccount, "No billing account found. Subscribe to Pro first.")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFoundError(c, err.Error())
	default:
		h.log.Error("billing session failed", "user_id", userID, "error", err)
		response.ServerError(c, "")
	}
}

// Webhook 接收 Stripe 事件。签名错误返回 400 让 Stripe 重试
// POST /billing/webhook
func (h *BillingHandler) Webhook(c *gin.Context) {
	sig := c.GetHeader(signatureHeader)
	if sig == "" {
		response.ParamError(c, "missing "+signatureHeader+" header")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		response.ParamError(c, "unreadable request body")
		return
	}

	event, err := h.billingService.ParseEvent(payload, sig)
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			h.log.Error("webhook received but signing secret is not configured")
			response.ServerError(c, "")
			return
		}
		h.log.Warn("webhook signature verification failed", "error", err)
		response.ParamError(c, "webhook signature verification failed")
		return
	}

	if err := h.billingService.HandleEvent(c.Request.Context(), event); err != nil {
		if errors.Is(err, service.ErrInvalidEvent) {
			h.log.Warn("webhook event rejected", "event_id", event.ID, "type", event.Type, "error", err)
			response.ParamError(c, "invalid event payload")
			return
		}
		h.log.Error("webhook processing failed", "event_id", event.ID, "type", event.Type, "error", err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{"received": true})
}
