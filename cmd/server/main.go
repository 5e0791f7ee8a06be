// Package main 是应用程序的入口点。
package main

import (
	"context"
	"cv-rag-go/internal/chunker"
	"cv-rag-go/internal/config"
	"cv-rag-go/internal/handler"
	"cv-rag-go/internal/index"
	"cv-rag-go/internal/middleware"
	"cv-rag-go/internal/model"
	"cv-rag-go/internal/pipeline"
	"cv-rag-go/internal/repository"
	"cv-rag-go/internal/service"
	"cv-rag-go/pkg/database"
	"cv-rag-go/pkg/embedding"
	"cv-rag-go/pkg/kafka"
	"cv-rag-go/pkg/llm"
	"cv-rag-go/pkg/log"
	"cv-rag-go/pkg/storage"
	"cv-rag-go/pkg/tika"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储与 Kafka 生产者
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	if err := database.DB.AutoMigrate(&model.Candidate{}, &model.CVChunk{}, &model.CVUpload{}); err != nil {
		log.Fatalf("数据库表结构迁移失败: %v", err)
	}

	// 4. 加载向量索引。文件不存在时从空索引启动, 文件损坏时拒绝启动。
	vectorIndex := index.New(cfg.Index)
	if err := vectorIndex.Load(); err != nil {
		log.Fatalf("加载向量索引失败: %v", err)
	}
	log.Infof("向量索引就绪, 当前 %d 条记录", vectorIndex.Count())

	// 5. 初始化 Repository
	candidateRepo := repository.NewCandidateRepository(database.DB)
	chunkRepo := repository.NewChunkRepository(database.DB)
	uploadRepo := repository.NewUploadRepository(database.DB)
	historyRepo := repository.NewHistoryRepository(database.RDB)

	// 6. 初始化 Service (依赖注入)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	cvChunker := chunker.New(cfg.Chunking)
	extractionService := service.NewExtractionService(llmClient)
	retrievalService := service.NewRetrievalService(embeddingClient, vectorIndex, chunkRepo, candidateRepo, cfg.Retrieval)
	answerService := service.NewAnswerService(llmClient, historyRepo, cfg.Answer)
	candidateService := service.NewCandidateService(candidateRepo, chunkRepo, uploadRepo, vectorIndex, cfg.MinIO.BucketName)

	// 7. 初始化简历索引管道并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(
		pipeline.NewMinioFetcher(cfg.MinIO.BucketName),
		tikaClient,
		extractionService,
		cvChunker,
		embeddingClient,
		candidateRepo,
		chunkRepo,
		uploadRepo,
		vectorIndex,
	)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	uploadHandler := handler.NewUploadHandler(uploadRepo, cfg.MinIO.BucketName)
	candidateHandler := handler.NewCandidateHandler(candidateService)
	queryHandler := handler.NewQueryHandler(retrievalService, answerService, historyRepo, cfg.Retrieval)
	adminHandler := handler.NewAdminHandler(vectorIndex)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "indexedChunks": vectorIndex.Count()})
	})

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/upload", uploadHandler.Upload)
		apiV1.GET("/uploads/:id", uploadHandler.GetUpload)

		candidates := apiV1.Group("/candidates")
		{
			candidates.GET("", candidateHandler.List)
			candidates.POST("/filter", candidateHandler.Filter)
			candidates.GET("/:id", candidateHandler.Get)
			candidates.GET("/:id/summary", candidateHandler.Get)
			candidates.GET("/:id/context", candidateHandler.GetContext)
			candidates.DELETE("/:id", candidateHandler.Delete)
		}

		apiV1.POST("/query", queryHandler.Query)
		apiV1.POST("/search", queryHandler.Search)
		apiV1.GET("/queries/recent", queryHandler.Recent)

		admin := apiV1.Group("/admin")
		{
			admin.POST("/index/compact", adminHandler.CompactIndex)
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// 停机前持久化向量索引, 避免丢失最近的软删除标记
	if err := vectorIndex.Persist(); err != nil {
		log.Errorf("停机时持久化向量索引失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
