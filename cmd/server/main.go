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

	"github.com/gin-gonic/gin"

	"studymind-go/internal/config"
	"studymind-go/internal/handler"
	"studymind-go/internal/pipeline"
	"studymind-go/internal/repository"
	"studymind-go/internal/service"
	"studymind-go/pkg/database"
	"studymind-go/pkg/es"
	"studymind-go/pkg/kafka"
	"studymind-go/pkg/llm"
	"studymind-go/pkg/log"
	"studymind-go/pkg/metrics"
	"studymind-go/pkg/storage"
	"studymind-go/pkg/tika"
	"studymind-go/pkg/token"
)

const (
	defaultConfigPath     = "./configs/config.yaml"
	backgroundDrainPeriod = 30 * time.Second
)

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("STUDYMIND_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 和对象存储
	database.InitPostgres(cfg.Database.Postgres)
	database.InitRedis(cfg.Database.Redis)
	storage.InitMinIO(cfg.MinIO)
	store := storage.NewStore(cfg.MinIO.BucketName)

	// 4. 初始化 Repository
	doubtRepo := repository.NewDoubtRepository(database.DB)
	materialRepo := repository.NewMaterialRepository(database.DB)
	chunkRepo := repository.NewMaterialChunkRepository(database.DB)
	quizRepo := repository.NewQuizRepository(database.DB)
	usageRepo := repository.NewUsageRepository(database.DB)
	progressRepo := repository.NewProgressRepository(database.DB)
	historyCache := repository.NewHistoryCache(database.RDB)
	leaderboardCache := repository.NewLeaderboardCache(database.RDB)

	// 5. 可选组件：Elasticsearch 全文检索、Kafka 异步处理。未启用时保持接口为 nil
	var (
		indexer   pipeline.ChunkIndexer
		searcher  service.ChunkSearcher
		publisher service.TaskPublisher
		producer  *kafka.Producer
	)
	if cfg.Elasticsearch.Enabled {
		if err := es.InitES(cfg.Elasticsearch); err != nil {
			log.Errorf("es 初始化失败，资料问答将使用顺序切块: %v", err)
		} else {
			chunkIndex := es.NewChunkIndex(cfg.Elasticsearch.IndexName)
			indexer, searcher = chunkIndex, chunkIndex
		}
	}
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka)
		publisher = producer
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	llmClient := llm.NewClient(cfg.LLM)
	tikaClient := tika.NewClient(cfg.Tika)
	background := &service.Background{}

	processor := pipeline.NewProcessor(materialRepo, chunkRepo, store, tikaClient, indexer, cfg.Material)
	doubtService := service.NewDoubtService(llmClient, doubtRepo, historyCache, usageRepo, background, cfg.AI.Prompt.Doubt)
	quizService := service.NewQuizService(llmClient, quizRepo, usageRepo, background, cfg.AI.Prompt.Quiz)
	materialService := service.NewMaterialService(service.MaterialDeps{
		LLM:          llmClient,
		MaterialRepo: materialRepo,
		ChunkRepo:    chunkRepo,
		UsageRepo:    usageRepo,
		Processor:    processor,
		Store:        store,
		Searcher:     searcher,
		Publisher:    publisher,
		Background:   background,
		Config:       cfg.Material,
		SystemPrompt: cfg.AI.Prompt.Material,
	})
	progressService := service.NewProgressService(quizRepo, progressRepo, leaderboardCache)

	// 7. 启动后台 Kafka 消费者
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled {
		go func() {
			defer close(consumerDone)
			kafka.StartConsumer(consumerCtx, cfg.Kafka, processor, kafka.RedisAttemptCounter{RDB: database.RDB})
		}()
	} else {
		close(consumerDone)
		log.Info("Kafka 未启用，资料需要通过 /process-material 处理")
	}

	// 8. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(jwtManager, handler.Handlers{
		Quiz:     handler.NewQuizHandler(quizService),
		Material: handler.NewMaterialHandler(materialService),
		Doubt:    handler.NewDoubtHandler(doubtService),
		Progress: handler.NewProgressHandler(progressService),
		Health:   handler.Health(healthChecks()),
		Metrics:  metrics.Handler(),
	})

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
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 正在进行的流式回答仍在后台保存，等待它们写完
	if !background.Wait(backgroundDrainPeriod) {
		log.Warnf("等待后台持久化任务超时 (%s)，部分记录可能丢失", backgroundDrainPeriod)
	}

	stopConsumer()
	<-consumerDone
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}

func healthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"redis": func(ctx context.Context) error { return database.RDB.Ping(ctx).Err() },
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		checks["postgres"] = sqlDB.PingContext
	}
	return checks
}
