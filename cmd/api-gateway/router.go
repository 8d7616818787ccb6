package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/config"
	"github.com/dumeirei/tkshop-backend/internal/common/jwt"
	"github.com/dumeirei/tkshop-backend/internal/common/metrics"
	commonMiddleware "github.com/dumeirei/tkshop-backend/internal/common/middleware"
	"github.com/dumeirei/tkshop-backend/internal/common/tracing"
	adminHandler "github.com/dumeirei/tkshop-backend/internal/handler/admin"
	sellerHandler "github.com/dumeirei/tkshop-backend/internal/handler/seller"
	"github.com/dumeirei/tkshop-backend/internal/middleware"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	authService "github.com/dumeirei/tkshop-backend/internal/service/auth"
	commissionService "github.com/dumeirei/tkshop-backend/internal/service/commission"
	depositService "github.com/dumeirei/tkshop-backend/internal/service/deposit"
	receiptService "github.com/dumeirei/tkshop-backend/internal/service/receipt"
	"github.com/dumeirei/tkshop-backend/internal/service/settlement"
	walletService "github.com/dumeirei/tkshop-backend/internal/service/wallet"
	"github.com/dumeirei/tkshop-backend/pkg/mqtt"
	"github.com/dumeirei/tkshop-backend/pkg/oss"
	"github.com/dumeirei/tkshop-backend/pkg/sms"
)

// 限流参数
const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
	userRateLimit   = 300
	userRateWindow  = time.Minute
)

// infra 已初始化的基础设施，redis/metrics/publisher 可为空
type infra struct {
	db        *gorm.DB
	redis     *redis.Client
	metrics   *metrics.Metrics
	tracer    *tracing.Tracer
	publisher mqtt.Publisher
}

// application 路由之外仍需使用的服务
type application struct {
	settlement *settlement.Engine
}

// setupRouter 组装服务并设置路由
func setupRouter(r *gin.Engine, cfg *config.Config, logger *zap.Logger, deps *infra) *application {
	// 创建 JWT 管理器
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:            cfg.JWT.Secret,
		AccessExpireTime:  cfg.JWT.AccessTokenDuration(),
		RefreshExpireTime: cfg.JWT.RefreshTokenDuration(),
		Issuer:            cfg.JWT.Issuer,
	})

	// 初始化仓储
	db := deps.db
	sellerRepo := repository.NewSellerRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	depositRepo := repository.NewDepositRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	eventRepo := repository.NewSettlementEventRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	logRepo := repository.NewOperationLogRepository(db)

	// 初始化外部服务客户端
	uploader := newUploader(cfg, logger)
	smsSender := newSMSSender(cfg, logger)

	// 初始化服务
	business := cfg.Business
	depositSvc := depositService.NewService(db, depositRepo, sellerRepo)
	walletSvc := walletService.NewService(db, sellerRepo, txRepo)
	commissionSvc := commissionService.NewService(db, commissionRepo, sellerRepo, adminRepo, commissionService.Options{
		Rate:     business.Commission.Rate,
		CacheTTL: time.Duration(business.Commission.SummaryCacheTTL) * time.Second,
		Redis:    deps.redis,
		Metrics:  deps.metrics,
	})
	dispatcher := settlement.NewDispatcher(eventRepo, commissionSvc, deps.publisher, deps.metrics, logger)
	engine := settlement.NewEngine(db, receiptRepo, depositRepo, eventRepo, depositSvc, walletSvc, dispatcher, settlement.Options{
		Redis:        deps.redis,
		Metrics:      deps.metrics,
		Tracer:       deps.tracer,
		Logger:       logger,
		LockTTL:      business.Settlement.LockDuration(),
		EntryTimeout: business.Settlement.EntryTimeoutDuration(),
	})
	receiptSvc := receiptService.NewService(db, receiptRepo, depositRepo, sellerRepo, depositSvc, walletSvc, engine, receiptService.Options{
		Uploader:       uploader,
		SMS:            smsSender,
		Metrics:        deps.metrics,
		USDTAddress:    business.USDT.Address,
		USDTNetwork:    business.USDT.Network,
		MaxProofSize:   business.USDT.MaxProofSize,
		MaxBulkEntries: business.Settlement.MaxBulkEntries,
	})
	authSvc := authService.NewService(adminRepo, sellerRepo, jwtManager)

	// 初始化处理器
	sellerH := sellerHandler.NewHandler(authSvc, depositSvc, receiptSvc, walletSvc, business.USDT.MaxProofSize)
	adminH := &adminHandler.Handlers{
		Auth:       adminHandler.NewAuthHandler(authSvc),
		Deposit:    adminHandler.NewDepositHandler(depositSvc),
		Receipt:    adminHandler.NewReceiptHandler(receiptSvc),
		Commission: adminHandler.NewCommissionHandler(commissionSvc),
		System:     adminHandler.NewSystemHandler(engine, receiptRepo, eventRepo, logRepo),
	}

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS(corsConfig(&cfg.CORS)))
	if deps.metrics != nil {
		r.Use(deps.metrics.Middleware())
	}
	if cfg.Tracing.Enabled {
		r.Use(commonMiddleware.Tracing(&commonMiddleware.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			SkipPaths:   []string{"/health", "/ping", "/ready", cfg.Metrics.Path},
		}), commonMiddleware.InjectTraceContext())
	}
	r.Use(middleware.AccessLog(logger))
	// multipart 凭证额外预留表单字段空间
	r.Use(middleware.RequestSizeLimiter(business.USDT.MaxProofSize + 1<<20))

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, deps.redis))
	if deps.metrics != nil {
		r.GET(cfg.Metrics.Path, deps.metrics.Handler())
	}

	// Swagger 文档
	if !cfg.IsRelease() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// 卖家端 API
	seller := r.Group("/api/v1/seller")
	{
		public := seller.Group("")
		public.Use(middleware.IPRateLimit(deps.redis, loginRateLimit, loginRateWindow))
		sellerH.RegisterPublicRoutes(public)

		protected := seller.Group("")
		protected.Use(middleware.SellerAuth(jwtManager))
		protected.Use(middleware.UserRateLimit(deps.redis, userRateLimit, userRateWindow))
		sellerH.RegisterRoutes(protected)
	}

	// 管理后台 API
	admin := r.Group("/api/admin")
	{
		public := admin.Group("")
		public.Use(middleware.IPRateLimit(deps.redis, loginRateLimit, loginRateWindow))
		adminH.RegisterPublicRoutes(public)

		protected := admin.Group("")
		protected.Use(middleware.AdminAuth(jwtManager))
		protected.Use(commonMiddleware.NewOperationLogger(logRepo).Log())
		adminH.RegisterRoutes(protected)
	}

	return &application{settlement: engine}
}

// corsConfig 将配置文件中的跨域设置转换为中间件配置
func corsConfig(c *config.CORSConfig) *middleware.CORSConfig {
	if len(c.AllowedOrigins) == 0 {
		return nil
	}
	return &middleware.CORSConfig{
		AllowOrigins:     c.AllowedOrigins,
		AllowMethods:     c.AllowedMethods,
		AllowHeaders:     c.AllowedHeaders,
		ExposeHeaders:    c.ExposedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           c.MaxAge,
	}
}

// newUploader 凭证存储，未配置阿里云时使用内存实现
func newUploader(cfg *config.Config, logger *zap.Logger) oss.Uploader {
	if cfg.OSS.Provider != "aliyun" {
		logger.Warn("OSS provider is mock, receipt proofs are kept in memory")
		return oss.NewMockUploader()
	}
	uploader, err := oss.NewAliyunUploader(&oss.AliyunConfig{
		Endpoint:        cfg.OSS.Endpoint,
		AccessKeyID:     cfg.OSS.AccessKeyID,
		AccessKeySecret: cfg.OSS.AccessKeySecret,
		BucketName:      cfg.OSS.Bucket,
		Domain:          cfg.OSS.CustomDomain,
		BasePath:        cfg.OSS.UploadDir,
	})
	if err != nil {
		logger.Fatal("Failed to init OSS uploader", zap.Error(err))
	}
	return uploader
}

// newSMSSender 审核结果短信，未启用时使用 Mock
func newSMSSender(cfg *config.Config, logger *zap.Logger) sms.Sender {
	if !cfg.SMS.Enabled {
		return sms.NewMockSender()
	}
	sender, err := sms.NewAliyunSender(&sms.AliyunConfig{
		AccessKeyID:     cfg.SMS.AccessKeyID,
		AccessKeySecret: cfg.SMS.AccessKeySecret,
		SignName:        cfg.SMS.SignName,
		Endpoint:        cfg.SMS.Endpoint,
	})
	if err != nil {
		logger.Fatal("Failed to init SMS sender", zap.Error(err))
	}
	if len(cfg.SMS.Templates) > 0 {
		sender.SetTemplates(cfg.SMS.Templates)
	}
	return sender
}
