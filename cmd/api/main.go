package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/course-rag/backend/internal/api/handlers"
	"github.com/course-rag/backend/internal/cache/redis"
	"github.com/course-rag/backend/internal/chunker"
	"github.com/course-rag/backend/internal/generator"
	"github.com/course-rag/backend/internal/llm"
	"github.com/course-rag/backend/internal/metrics"
	"github.com/course-rag/backend/internal/middleware/ratelimit"
	"github.com/course-rag/backend/internal/rag"
	"github.com/course-rag/backend/internal/resolver"
	"github.com/course-rag/backend/internal/session"
	"github.com/course-rag/backend/internal/storage/sqlite"
	"github.com/course-rag/backend/internal/tools"
	"github.com/course-rag/backend/internal/vector"
	"github.com/course-rag/backend/internal/vector/memory"
	"github.com/course-rag/backend/internal/vector/milvus"
	"github.com/course-rag/backend/pkg/config"
	appLogger "github.com/course-rag/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("starting course materials RAG server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("failed to create sqlite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("failed to initialize schema", zap.Error(err))
	}

	var llmOpts []llm.Option
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("failed to create redis client", zap.Error(err))
		}
		defer redisClient.Close()
		llmOpts = append(llmOpts, llm.WithEmbeddingCache(redisClient,
			time.Duration(cfg.Redis.TTLHours)*time.Hour))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		llmOpts...,
	)

	store, closeStore, err := buildStore(cfg, llmClient)
	if err != nil {
		appLogger.Fatal("failed to create vector store", zap.Error(err))
	}
	defer closeStore()

	nameResolver := resolver.New(store, cfg.Resolver.MaxDistance)

	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewContentSearchTool(store, nameResolver, cfg.Search.MaxResults)); err != nil {
		appLogger.Fatal("failed to register search tool", zap.Error(err))
	}
	if err := registry.Register(tools.NewOutlineTool(store, nameResolver)); err != nil {
		appLogger.Fatal("failed to register outline tool", zap.Error(err))
	}

	gen := generator.New(llmClient, registry)
	sessions := session.NewManager(cfg.Session.MaxExchanges)
	splitter := chunker.New(cfg.Chunking.MaxChars, cfg.Chunking.Overlap)

	system := rag.NewSystem(store, splitter, gen, registry, sessions, sqliteClient)

	if info, err := os.Stat(cfg.Docs.Path); err == nil && info.IsDir() {
		courses, chunks, err := system.AddCourseFolder(context.Background(), cfg.Docs.Path)
		if err != nil {
			appLogger.Warn("failed to ingest course folder", zap.Error(err))
		} else {
			appLogger.Info("course folder ingested",
				zap.String("path", cfg.Docs.Path),
				zap.Int("courses", courses),
				zap.Int("chunks", chunks),
			)
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	queryHandler := handlers.NewQueryHandler(system, sqliteClient)
	coursesHandler := handlers.NewCoursesHandler(system)
	documentHandler := handlers.NewDocumentHandler(system)
	wsHandler := handlers.NewWebSocketHandler(system)

	limiter := ratelimit.New(60)

	api := app.Group("/api", limiter.Middleware())
	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)
	api.Get("/courses", coursesHandler.GetCourseStats)
	api.Post("/documents", documentHandler.UploadDocument)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("server shutting down gracefully")
	app.Shutdown()
	appLogger.Info("server stopped")
}

// buildStore picks the vector store implementation from config. The
// memory provider keeps everything in process for local development.
func buildStore(cfg *config.Config, embedder vector.Embedder) (vector.Store, func(), error) {
	switch cfg.Vector.Provider {
	case "memory":
		return memory.New(embedder), func() {}, nil
	case "milvus", "":
		client, err := milvus.NewClient(
			cfg.Vector.Endpoint,
			cfg.Vector.CatalogCollection,
			cfg.Vector.ContentCollection,
			cfg.Vector.Dim,
			embedder,
		)
		if err != nil {
			return nil, nil, err
		}
		if err := client.EnsureCollections(context.Background()); err != nil {
			client.Close()
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector provider: %s", cfg.Vector.Provider)
	}
}
