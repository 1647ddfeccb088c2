package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"exclusivelink/internal/config"
	"exclusivelink/internal/crypto"
	"exclusivelink/internal/handlers"
	"exclusivelink/internal/middleware"
	"exclusivelink/internal/models"
	"exclusivelink/internal/observability"
	"exclusivelink/internal/services"
	"exclusivelink/pkg/instagram"
	"exclusivelink/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	// 读取配置文件（默认 ./config.yml）并初始化日志
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()

	// 允许通过 flags/env 覆盖数据库连接与监听地址
	var (
		flagDSN   string
		dbHost    string
		dbPortStr string
		dbUser    string
		dbPass    string
		dbName    string
		dbSSLMode string
		srvHost   string
		srvPort   int
	)
	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(os.Stdout)
	flagSet.StringVar(&flagDSN, "dsn", os.Getenv("DB_DSN"), "Postgres DSN, if set overrides other DB flags")
	flagSet.StringVar(&dbHost, "db-host", getenvDefault("DB_HOST", cfg.Database.Host), "database host")
	flagSet.StringVar(&dbPortStr, "db-port", getenvDefault("DB_PORT", fmt.Sprintf("%d", cfg.Database.Port)), "database port")
	flagSet.StringVar(&dbUser, "db-user", getenvDefault("DB_USER", cfg.Database.User), "database user")
	flagSet.StringVar(&dbPass, "db-pass", getenvDefault("DB_PASSWORD", cfg.Database.Password), "database password")
	flagSet.StringVar(&dbName, "db-name", getenvDefault("DB_NAME", cfg.Database.Name), "database name")
	flagSet.StringVar(&dbSSLMode, "db-sslmode", getenvDefault("DB_SSLMODE", "disable"), "sslmode (disable, require, verify-ca, verify-full)")
	flagSet.StringVar(&srvHost, "host", getenvDefault("EL_HOST", cfg.Server.Host), "server host (listen)")
	flagSet.IntVar(&srvPort, "port", func() int {
		if p := os.Getenv("EL_PORT"); p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				return n
			}
		}
		return cfg.Server.Port
	}(), "server port (listen)")
	_ = flagSet.Parse(os.Args[1:])

	if err := config.InitLogger(cfg); err != nil {
		logrus.Warnf("init logger: %v", err)
	}
	appLogger := logrus.StandardLogger()

	if err := cfg.Validate(); err != nil {
		appLogger.Fatalf("Invalid configuration: %v", err)
	}

	// OpenTelemetry 初始化（可选）
	shutdownOTel, err := observability.SetupTracing(context.Background(), cfg)
	if err != nil {
		appLogger.Warnf("init tracing: %v", err)
	} else {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	// 组装 DSN
	dsn := flagDSN
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			firstNonEmpty(dbHost, cfg.Database.Host),
			firstNonEmpty(dbUser, cfg.Database.User),
			firstNonEmpty(dbPass, cfg.Database.Password),
			firstNonEmpty(dbName, cfg.Database.Name),
			dbPortStr, dbSSLMode)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		appLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if cfg.Monitoring.Tracing.Enabled {
		_ = db.Use(gormtracing.NewPlugin())
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(
		&models.User{}, &models.Material{}, &models.AccessRequest{},
		&models.InstagramIntegration{}, &models.Automation{},
	); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	// 令牌加密
	key, err := crypto.ParseKey(cfg.Encryption.Key)
	if err != nil {
		appLogger.Fatalf("Invalid encryption key: %v", err)
	}
	cipher, err := crypto.NewCipher(key)
	if err != nil {
		appLogger.Fatalf("Init cipher: %v", err)
	}

	// 外部客户端
	igClient := instagram.NewClient(&instagram.Config{
		AppID:            cfg.Instagram.AppID,
		AppSecret:        cfg.Instagram.AppSecret,
		RedirectURI:      cfg.Instagram.RedirectURI,
		OAuthBaseURL:     cfg.Instagram.OAuthBaseURL,
		GraphBaseURL:     cfg.Instagram.GraphBaseURL,
		MessagingBaseURL: cfg.Instagram.MessagingBaseURL,
		Timeout:          cfg.Instagram.Timeout,
	}, appLogger)
	storageClient := storage.NewClient(&storage.Config{
		BaseURL:    cfg.Storage.BaseURL,
		ServiceKey: cfg.Storage.ServiceKey,
		Bucket:     cfg.Storage.Bucket,
		Timeout:    cfg.Storage.Timeout,
	}, appLogger)

	// 业务服务
	authService := services.NewAuthService(db, appLogger)
	materialService := services.NewMaterialService(db, appLogger)
	accessRequestService := services.NewAccessRequestService(db, appLogger)
	integrationService := services.NewIntegrationService(db, igClient, cipher, appLogger)
	automationService := services.NewAutomationService(db, appLogger)
	webhookService := services.NewWebhookService(db, igClient, cipher,
		cfg.Instagram.AppSecret, cfg.Instagram.WebhookVerifyToken, appLogger)

	// 初始化 Gin
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddlewareWithConfig(cfg))
	r.Use(middleware.RateLimitMiddleware(cfg))
	if cfg.Monitoring.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Monitoring.Tracing.ServiceName))
	}

	// 探针与轻量指标
	healthHandler := handlers.NewHealthHandler(db)
	metricsPath := ""
	if cfg.Monitoring.Enabled {
		metricsPath = cfg.Monitoring.MetricsPath
	}
	handlers.RegisterHealthRoutes(r, healthHandler, metricsPath)

	authHandler := handlers.NewAuthHandler(authService, cfg)
	materialHandler := handlers.NewMaterialHandler(materialService)
	redeemHandler := handlers.NewRedeemHandler(accessRequestService)
	verificationHandler := handlers.NewVerificationHandler(accessRequestService)
	automationHandler := handlers.NewAutomationHandler(automationService)
	integrationHandler := handlers.NewIntegrationHandler(integrationService, igClient)
	webhookHandler := handlers.NewWebhookHandler(webhookService, appLogger)
	uploadHandler := handlers.NewUploadHandler(storageClient, cfg)

	// 管理 API（会话保护）
	api := r.Group("/api")
	handlers.RegisterAuthRoutes(api, authHandler)
	protected := api.Group("/")
	protected.Use(middleware.SessionMiddleware(cfg))
	handlers.RegisterProfileRoutes(protected, authHandler)
	handlers.RegisterMaterialRoutes(protected, materialHandler)
	handlers.RegisterVerificationRoutes(protected, verificationHandler)
	handlers.RegisterAutomationRoutes(protected, automationHandler)
	handlers.RegisterIntegrationRoutes(protected, integrationHandler)
	handlers.RegisterUploadRoutes(protected, uploadHandler)

	// 公开 API（落地页、兑换）
	public := r.Group("/public")
	handlers.RegisterPublicMaterialRoutes(public, materialHandler)
	handlers.RegisterRedeemRoutes(public, redeemHandler)

	// Webhook（验签自带鉴权）
	webhooks := r.Group("/webhooks")
	handlers.RegisterWebhookRoutes(webhooks, webhookHandler)

	// 启动服务器
	host := firstNonEmpty(srvHost, cfg.Server.Host)
	port := srvPort
	if port == 0 {
		port = cfg.Server.Port
	}
	listenAddr := fmt.Sprintf("%s:%d", host, port)

	srv := &http.Server{Addr: listenAddr, Handler: r}
	go func() {
		appLogger.Infof("Starting server on %s", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatalf("Server forced to shutdown: %v", err)
	}
	appLogger.Info("Server exited")
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// corsMiddlewareWithConfig CORS 中间件
func corsMiddlewareWithConfig(cfg *config.Config) gin.HandlerFunc {
	allowedOrigins := "*"
	allowedMethods := "GET, POST, PUT, DELETE, OPTIONS"
	allowedHeaders := "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token"
	if cfg != nil && cfg.Security.CORS.Enabled {
		if len(cfg.Security.CORS.AllowedOrigins) > 0 {
			allowedOrigins = strings.Join(cfg.Security.CORS.AllowedOrigins, ", ")
		}
		if len(cfg.Security.CORS.AllowedMethods) > 0 {
			allowedMethods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
		}
		if len(cfg.Security.CORS.AllowedHeaders) > 0 {
			allowedHeaders = strings.Join(cfg.Security.CORS.AllowedHeaders, ", ")
		}
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigins)
		c.Header("Access-Control-Allow-Methods", allowedMethods)
		c.Header("Access-Control-Allow-Headers", allowedHeaders)
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
