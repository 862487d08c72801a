package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yooventa/tubetalk/config"
	"github.com/yooventa/tubetalk/internal/api/handlers"
	"github.com/yooventa/tubetalk/internal/api/middleware"
	"github.com/yooventa/tubetalk/internal/api/routes"
	"github.com/yooventa/tubetalk/internal/cache"
	"github.com/yooventa/tubetalk/internal/logger"
	"github.com/yooventa/tubetalk/internal/models"
	"github.com/yooventa/tubetalk/internal/providers/embedding"
	"github.com/yooventa/tubetalk/internal/providers/llm"
	"github.com/yooventa/tubetalk/internal/providers/youtube"
	mongorepo "github.com/yooventa/tubetalk/internal/repositories/mongo"
	"github.com/yooventa/tubetalk/internal/repositories/postgres"
	"github.com/yooventa/tubetalk/internal/services"
	"github.com/yooventa/tubetalk/internal/workers"
)

func main() {
	_ = godotenv.Load()

	appLog := logger.New()

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	appLog.Info("PostgreSQL connected")

	if err := config.PostgresDB.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		log.Fatalf("pgvector extension error: %v", err)
	}
	if err := config.PostgresDB.AutoMigrate(
		&models.Video{},
		&models.TranscriptFragment{},
		&models.Thread{},
		&models.Message{},
	); err != nil {
		log.Fatalf("Migration error: %v", err)
	}

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	appLog.Info("MongoDB connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	appLog.Info("Redis connected")

	ctx := context.Background()

	// Providers
	provider, err := llm.NewVertexGemini(ctx, settings.GCPProject, settings.GCPLocation, settings.LLMModel)
	if err != nil {
		log.Fatalf("Vertex init error: %v", err)
	}
	defer provider.Close()

	embedder := embedding.NewHTTPEmbedder(os.Getenv("EMBEDDING_BASE_URL"), settings.EmbeddingModel)
	redisCache := cache.NewRedisCache(config.RedisClient)
	source := youtube.NewClient(redisCache)

	// Repositories
	videoRepo := postgres.NewVideoRepo(config.PostgresDB)
	fragmentRepo := postgres.NewFragmentRepo(config.PostgresDB)
	threadRepo := postgres.NewThreadRepo(config.PostgresDB)
	messageRepo := postgres.NewMessageRepo(config.PostgresDB)
	checkpointRepo := mongorepo.NewCheckpointRepo(config.MongoDatabase())

	// Services
	summaryQueue := workers.NewSummaryQueue(config.RedisClient)
	ingestSvc := services.NewIngestService(source, embedder, videoRepo, fragmentRepo, threadRepo, summaryQueue, services.IngestConfig{
		ChunkSize:       settings.ChunkSize,
		ChunkOverlap:    settings.ChunkOverlap,
		EmbedBatchSize:  settings.EmbedBatchSize,
		MaxVideoSeconds: settings.MaxVideoSeconds,
	}, appLog)
	retrieverSvc := services.NewRetrieverService(embedder, fragmentRepo, videoRepo)
	historySvc := services.NewHistoryService(threadRepo, messageRepo, checkpointRepo)
	chatSvc := services.NewChatService(historySvc, retrieverSvc, provider, services.ChatConfig{
		TopK:              settings.TopK,
		TokenBudget:       settings.TokenBudget,
		RetrievalTimeout:  settings.RetrievalTimeout,
		GenerationTimeout: settings.GenerationTimeout,
	}, appLog)

	// Background summaries
	pool := &workers.SummaryWorkerPool{
		Redis:      config.RedisClient,
		Videos:     videoRepo,
		LLM:        provider,
		NumWorkers: settings.SummaryWorkers,
		Logger:     appLog,
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("Summary worker error: %v", err)
	}

	// Start Gin server
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(appLog))

	routes.RegisterRoutes(r, routes.Deps{
		Thread: handlers.NewThreadHandler(ingestSvc, historySvc),
		Chat:   handlers.NewChatHandler(chatSvc, appLog),
		Video:  handlers.NewVideoHandler(ingestSvc),
	})

	if err := r.Run(":" + settings.Port); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
