package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/nextaction_server/config"
	"github.com/qs3c/nextaction_server/internal/api/handler"
	"github.com/qs3c/nextaction_server/internal/api/middleware"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/pkg/logger"
	"github.com/qs3c/nextaction_server/internal/pkg/metrics"
	"github.com/qs3c/nextaction_server/internal/service"
)

type Router struct {
	userHandler    *handler.UserHandler
	actionHandler  *handler.ActionHandler
	goalHandler    *handler.GoalHandler
	billingHandler *handler.BillingHandler
	authenticator  middleware.Authenticator
	userService    *service.UserService
	entitlementSvc *service.EntitlementService
	log            *logger.Logger
	cfg            *config.Config
}

func NewRouter(
	userHandler *handler.UserHandler,
	actionHandler *handler.ActionHandler,
	goalHandler *handler.GoalHandler,
	billingHandler *handler.BillingHandler,
	authenticator middleware.Authenticator,
	userService *service.UserService,
	entitlementSvc *service.EntitlementService,
	log *logger.Logger,
	cfg *config.Config,
) *Router {
	return &Router{
		userHandler:    userHandler,
		actionHandler:  actionHandler,
		goalHandler:    goalHandler,
		billingHandler: billingHandler,
		authenticator:  authenticator,
		userService:    userService,
		entitlementSvc: entitlementSvc,
		log:            log,
		cfg:            cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery(r.log))
	engine.Use(middleware.RequestLogger(r.log))
	engine.Use(metrics.Middleware())
	engine.Use(middleware.CORS(r.cfg.CORS, r.cfg.Client.BaseURL))

	// 公开接口
	engine.GET("/health", handler.Health)
	engine.GET("/metrics", metrics.Handler())

	// Stripe webhook 用签名校验，不走 bearer 认证
	engine.POST("/billing/webhook", r.billingHandler.Webhook)

	// 需要认证的接口
	authenticated := engine.Group("")
	authenticated.Use(middleware.Auth(r.authenticator, r.userService, r.log))
	{
		authenticated.GET("/me", r.userHandler.Me)

		// 先校验请求体再扣额度
		authenticated.POST("/next-action",
			middleware.BindJSON[dto.NextActionRequest](),
			middleware.EntitlementCheck(r.entitlementSvc, r.log),
			r.actionHandler.NextAction,
		)
		authenticated.GET("/history", r.actionHandler.History)
		authenticated.POST("/feedback", r.actionHandler.Feedback)

		goals := authenticated.Group("/goals")
		{
			goals.GET("", r.goalHandler.List)
			goals.POST("", r.goalHandler.Create)
			goals.PUT("/:id", r.goalHandler.Update)
			goals.DELETE("/:id", r.goalHandler.Delete)
		}

		billing := authenticated.Group("/billing")
		{
			billing.GET("/status", r.billingHandler.Status)
			billing.POST("/create-checkout-session", r.billingHandler.CreateCheckoutSession)
			billing.POST("/create-portal-session", r.billingHandler.CreatePortalSession)
		}
	}

	return engine
}
