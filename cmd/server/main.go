package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"docvault/internal/adapter/cachestore"
	"docvault/internal/adapter/httpapi"
	"docvault/internal/adapter/provider"
	"docvault/internal/adapter/repository"
	"docvault/internal/domain"
	"docvault/internal/infra"
	"docvault/internal/infra/config"
	"docvault/internal/infra/httpclient"
	"docvault/internal/infra/logger"
	"docvault/internal/tokenizer"
	"docvault/internal/usecase"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.NewWithOTel(cfg.EnableOTel)
	slog.SetDefault(log)

	// 3. Initialize DB
	dbPool, err := infra.NewPostgresDB(context.Background(), cfg.DSN()+"?sslmode=disable")
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 4. Initialize Cache Backend
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = redisClient.Close() }()
		cache = cachestore.NewRedisCache(redisClient, log)
		log.Info("cache_backend_selected", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		cache = cachestore.NewMemoryCache(cfg.CacheSize)
		log.Info("cache_backend_selected", "backend", "memory", "size", cfg.CacheSize)
	}

	// 5. Initialize Providers
	embedder := provider.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, 0, log,
		httpclient.NewPooledClient(30*time.Second))
	generator := provider.NewLazyGenerator(func() (domain.LLMClient, error) {
		return provider.NewOllamaGenerator(cfg.OllamaURL, cfg.GenerationModel, 0, log,
			httpclient.NewPooledClient(120*time.Second)), nil
	})
	var reranker domain.Reranker
	if cfg.RerankerURL != "" {
		reranker = provider.NewRerankerClient(cfg.RerankerURL, cfg.RerankerModel, 0, log,
			httpclient.NewPooledClient(60*time.Second))
	}

	// 6. Initialize Pipeline Stages
	analyzerConfig := usecase.DefaultQueryAnalyzerConfig()
	analyzerConfig.Enabled = cfg.RAG.AnalysisEnabled
	analyzerConfig.MinConfidence = cfg.RAG.MinConfidence
	analyzerConfig.CacheTTL = cfg.RAG.AnalysisCacheTTL
	analyzer := usecase.NewQueryAnalyzer(generator, cache, analyzerConfig, log)

	retrieverConfig := usecase.DefaultRetrieverConfig()
	retrieverConfig.OverfetchMultiplier = cfg.RAG.OverfetchMultiplier
	retrieverConfig.MinSimilarity = cfg.RAG.MinSimilarity
	retrieverConfig.CacheTTL = cfg.RAG.RetrievalCacheTTL
	retriever := usecase.NewRetriever(repository.NewChunkStore(dbPool), embedder, cache, retrieverConfig, log)

	rerankConfig := usecase.DefaultRerankStageConfig()
	rerankConfig.Enabled = cfg.RAG.RerankingEnabled && reranker != nil
	rerankConfig.CacheTTL = cfg.RAG.RerankCacheTTL
	rerankStage := usecase.NewRerankStage(reranker, cache, rerankConfig, log)

	compressorConfig := usecase.CompressorConfig{
		Enabled:     cfg.RAG.CompressionEnabled,
		TokenBudget: cfg.RAG.CompressionBudget,
	}
	compressor := usecase.NewCompressor(tokenizer.NewCounter(cfg.TokenEncoding), compressorConfig, log)

	pipelineConfig := usecase.DefaultPipelineConfig()
	pipelineConfig.DefaultTopK = cfg.RAG.TopK
	pipelineConfig.MinSimilarity = cfg.RAG.MinSimilarity
	pipelineConfig.MaxAnswerTokens = cfg.RAG.MaxAnswerTokens
	pipeline := usecase.NewAnswerPipeline(
		analyzer,
		retriever,
		rerankStage,
		compressor,
		usecase.NewPromptBuilder(),
		generator,
		pipelineConfig,
		log,
	)

	// 7. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(requestLogging(log))

	// 8. Register Handlers
	httpapi.NewHandler(pipeline).Register(e)

	// 9. Health Checks
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		if err := dbPool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	// 10. Start Server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("starting_server", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("server_stopped", "error", err)
		}
	}()

	// 11. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("shutdown_failed", "error", err)
		os.Exit(1)
	}
	log.Info("server_stopped_gracefully")
}

// requestLogging tags each request context with an id and logs the
// outcome with whatever request-scoped fields accumulated.
func requestLogging(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logger.WithRequestID(c.Request().Context(), uuid.NewString())
			c.SetRequest(c.Request().WithContext(ctx))

			start := time.Now()
			err := next(c)

			logger.FromContext(ctx, log).Info("request_completed",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
				slog.Int("status", c.Response().Status),
				slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
			return err
		}
	}
}
