package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/nextaction_server/config"
	"github.com/qs3c/nextaction_server/internal/api"
	"github.com/qs3c/nextaction_server/internal/api/handler"
	"github.com/qs3c/nextaction_server/internal/database"
	"github.com/qs3c/nextaction_server/internal/pkg/billing"
	"github.com/qs3c/nextaction_server/internal/pkg/identity"
	"github.com/qs3c/nextaction_server/internal/pkg/llm"
	"github.com/qs3c/nextaction_server/internal/pkg/logger"
	"github.com/qs3c/nextaction_server/internal/pkg/metrics"
	"github.com/qs3c/nextaction_server/internal/repository"
	"github.com/qs3c/nextaction_server/internal/service"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Mode == "prod")
	if err != nil {
		zlog.Fatal("failed to connect database", "error", err)
	}
	zlog.Info("database connected")

	sqlDB, err := db.DB()
	if err != nil {
		zlog.Fatal("failed to get sql db", "error", err)
	}
	defer sqlDB.Close()
	go metrics.StartDBStatsCollector(ctx, sqlDB, 15*time.Second)

	// Redis 可选，只用于 webhook 去重
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		zlog.Fatal("failed to connect redis", "error", err)
	}
	if rdb != nil {
		defer rdb.Close()
		zlog.Info("redis connected")
	} else {
		zlog.Warn("redis not configured, webhook events are not de-duplicated")
	}

	verifier, err := identity.NewVerifier(&cfg.Auth)
	if err != nil {
		zlog.Fatal("failed to init identity verifier", "error", err)
	}

	llmClient, err := llm.New(ctx, &cfg.LLM)
	if err != nil {
		zlog.Fatal("failed to init llm client", "error", err)
	}
	if closer, ok := llmClient.(io.Closer); ok {
		defer closer.Close()
	}
	zlog.Info("llm client ready", "provider", cfg.LLM.Provider, "model", llmClient.Model())

	if cfg.Stripe.SecretKey == "" {
		zlog.Warn("stripe secret key not set, billing endpoints will fail")
	}
	stripeProvider := billing.NewStripeProvider(&cfg.Stripe, cfg.Client.BaseURL)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	entRepo := repository.NewEntitlementRepository(db)
	goalRepo := repository.NewGoalRepository(db)
	recRepo := repository.NewRecommendationRepository(db)
	fbRepo := repository.NewFeedbackRepository(db)

	// 初始化 Service
	entitlementService := service.NewEntitlementService(entRepo, cfg)
	// 未配置后台密钥时不补全资料
	var profileFetcher service.ProfileFetcher
	if verifier.CanFetchProfile() {
		profileFetcher = verifier
	}
	userService := service.NewUserService(userRepo, entitlementService, profileFetcher, zlog.With("component", "user"))
	goalService := service.NewGoalService(goalRepo)
	recService := service.NewRecommendationService(recRepo, goalRepo, fbRepo, llmClient, zlog.With("component", "recommendation"))
	billingService := service.NewBillingService(userRepo, entRepo, stripeProvider, rdb, zlog.With("component", "billing"))

	// 初始化 Handler
	userHandler := handler.NewUserHandler(userService)
	actionHandler := handler.NewActionHandler(recService, zlog)
	goalHandler := handler.NewGoalHandler(goalService)
	billingHandler := handler.NewBillingHandler(billingService, entitlementService, zlog)

	// 初始化 Router
	router := api.NewRouter(
		userHandler,
		actionHandler,
		goalHandler,
		billingHandler,
		verifier,
		userService,
		entitlementService,
		zlog,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", "error", err)
	}
}
