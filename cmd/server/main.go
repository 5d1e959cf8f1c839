// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleet-support-go/internal/config"
	"fleet-support-go/internal/handler"
	"fleet-support-go/internal/middleware"
	"fleet-support-go/internal/model"
	"fleet-support-go/internal/pipeline"
	"fleet-support-go/internal/repository"
	"fleet-support-go/internal/service"
	"fleet-support-go/pkg/database"
	"fleet-support-go/pkg/embedding"
	"fleet-support-go/pkg/es"
	"fleet-support-go/pkg/kafka"
	"fleet-support-go/pkg/llm"
	"fleet-support-go/pkg/log"
	"fleet-support-go/pkg/storage"
	"fleet-support-go/pkg/token"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、缓存与外部依赖
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(
		&model.User{},
		&model.DatasetUpload{},
		&model.AnalysisReport{},
		&model.KBEntry{},
	); err != nil {
		log.Fatal("数据库自动迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepository := repository.NewUserRepository(database.DB)
	datasetRepo := repository.NewDatasetRepository(database.DB)
	reportRepo := repository.NewReportRepository(database.DB)
	kbRepo := repository.NewKBRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.RDB, cfg.Session)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	userService := service.NewUserService(userRepository, jwtManager)
	analysisService := service.NewAnalysisService(datasetRepo, reportRepo, cfg.MinIO.BucketName, cfg.Analysis)
	kbService := service.NewKBService(kbRepo, cfg.MinIO.BucketName)
	retrievalService := service.NewRetrievalService(embeddingClient, es.ESClient, cfg.Elasticsearch.IndexName)
	chatService := service.NewChatService(retrievalService, llmClient, sessionRepo, cfg.Retrieval)
	adminService := service.NewAdminService(userRepository, sessionRepo)

	// 6. 初始化知识库导入管道 (Processor)
	processor := pipeline.NewProcessor(
		kbRepo,
		embeddingClient,
		cfg.MinIO.BucketName,
		cfg.Elasticsearch.IndexName,
		cfg.Embedding.Model,
	)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())
	// 前端与后端分离部署，放开跨域
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	// 健康检查
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "IT Fleet Support API is running"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
			}
		}

		// Analysis 路由组，需要认证
		analysisGroup := apiV1.Group("/analysis")
		analysisGroup.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			analysisHandler := handler.NewAnalysisHandler(analysisService)
			analysisGroup.POST("/upload", analysisHandler.Upload)
			analysisGroup.GET("/reports", analysisHandler.ListReports)
			analysisGroup.GET("/reports/:id", analysisHandler.GetReport)
		}

		// 知识库路由组，需要认证
		kbGroup := apiV1.Group("/kb")
		kbGroup.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			kbHandler := handler.NewKBHandler(kbService, retrievalService, cfg.Retrieval.TopK)
			kbGroup.POST("/upload", kbHandler.Upload)
			kbGroup.GET("/status/:md5", kbHandler.Status)
			kbGroup.GET("/search", kbHandler.Search)
		}

		// Chat 路由组，匿名访问
		chatGroup := apiV1.Group("/chat")
		{
			chatHandler := handler.NewChatHandler(chatService)
			chatGroup.POST("/start-session", chatHandler.StartSession)
			chatGroup.POST("", chatHandler.Chat)
			chatGroup.GET("/session/:sessionId", chatHandler.GetSession)
			chatGroup.DELETE("/session/:sessionId", chatHandler.DeleteSession)
			chatGroup.GET("/stream/:sessionId", chatHandler.Stream)
		}

		admin := apiV1.Group("/admin")
		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin.Use(middleware.AuthMiddleware(jwtManager, userService), middleware.AdminAuthMiddleware())
		{
			adminHandler := handler.NewAdminHandler(adminService)
			admin.GET("/users/list", adminHandler.ListUsers)
			admin.GET("/sessions", adminHandler.ListSessions)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者随进程退出自然结束，无需单独关闭。
	log.Info("服务已优雅关闭")
}
