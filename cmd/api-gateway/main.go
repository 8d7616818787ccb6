// Package main 是应用程序入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dumeirei/tkshop-backend/internal/common/cache"
	"github.com/dumeirei/tkshop-backend/internal/common/config"
	"github.com/dumeirei/tkshop-backend/internal/common/database"
	"github.com/dumeirei/tkshop-backend/internal/common/logger"
	"github.com/dumeirei/tkshop-backend/internal/common/metrics"
	"github.com/dumeirei/tkshop-backend/internal/common/tracing"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/scheduler"
	"github.com/dumeirei/tkshop-backend/pkg/mqtt"
)

const version = "1.0.0"

func main() {
	// 加载配置
	cfg, err := config.Load(os.Getenv("TKSHOP_CONFIG"))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.GetLogger()

	log.Info("Starting TKShop Settlement Backend",
		zap.String("version", version),
		zap.String("env", cfg.Server.Mode),
	)

	// 初始化数据库连接
	db, err := database.Init(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := models.AutoMigrate(db); err != nil {
			log.Fatal("Failed to migrate schema", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// 初始化 Redis 连接，未启用时结算锁与佣金缓存降级
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.Init(&cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		log.Info("Redis connected successfully")
	} else {
		log.Warn("Redis disabled, settlement lock and summary cache are off")
	}

	// 监控与追踪
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.Init(cfg.Metrics.Namespace)
	}
	tracer, err := tracing.Init(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}

	// MQTT 结算事件推送
	var publisher mqtt.Publisher
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(&mqtt.Config{
			Broker:         cfg.MQTT.Broker,
			Port:           cfg.MQTT.Port,
			ClientID:       fmt.Sprintf("%s%d", cfg.MQTT.ClientIDPrefix, os.Getpid()),
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			QoS:            cfg.MQTT.QoS,
			KeepAlive:      cfg.MQTT.KeepAlive,
			AutoReconnect:  cfg.MQTT.AutoReconnect,
			ConnectTimeout: cfg.MQTT.ConnectTimeout,
		}, log)
		if err := mqttClient.Connect(); err != nil {
			// 未投递事件保留在 outbox，由定时任务重放
			log.Error("Failed to connect MQTT broker", zap.Error(err))
		}
		publisher = mqtt.NewEventPublisher(mqttClient, cfg.MQTT.TopicPrefix, 5*time.Second)
	}

	// 设置 Gin 模式
	switch {
	case cfg.IsRelease():
		gin.SetMode(gin.ReleaseMode)
	case cfg.Server.Mode == "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()

	// 设置路由
	app := setupRouter(engine, cfg, log, &infra{
		db:        db,
		redis:     redisClient,
		metrics:   m,
		tracer:    tracer,
		publisher: publisher,
	})

	// 定时重放未投递的结算事件
	sched := scheduler.NewScheduler(log)
	tasks := scheduler.NewTaskHandler(app.settlement, cfg.Business.Settlement.ReplayBatch, log)
	sched.AddTask("replay_settlement_events", cfg.Business.Settlement.ReplayIntervalDuration(), tasks.ReplaySettlementEvents)
	sched.Start()

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	sched.Stop()

	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if err := tracer.Shutdown(ctx); err != nil {
		log.Warn("Tracer shutdown failed", zap.Error(err))
	}
	if err := database.Close(); err != nil {
		log.Warn("Database close failed", zap.Error(err))
	}

	log.Info("Server exited")
}
