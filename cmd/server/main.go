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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"rag-engine/internal/adapter/arxiv"
	"rag-engine/internal/adapter/httpapi"
	"rag-engine/internal/adapter/ollama"
	"rag-engine/internal/adapter/repository"
	"rag-engine/internal/domain"
	"rag-engine/internal/infra"
	"rag-engine/internal/infra/config"
	"rag-engine/internal/infra/logger"
	"rag-engine/internal/usecase"
	"rag-engine/internal/worker"
)

const (
	generationTemperature = 0.2
	judgeTemperature      = 0.0
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.New()
	slog.SetDefault(log)

	// 3. Initialize DB
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	dbPool, err := infra.NewPostgresDB(context.Background(), dsn)
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := infra.EnsureSchema(context.Background(), dbPool); err != nil {
		log.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	// 4. Initialize Adapters
	vectorStore := repository.NewPgVectorStore(dbPool)
	lexicalIndex := repository.NewPgLexicalIndex(dbPool)
	conversationStore := repository.NewPgConversationStore(dbPool)
	jobRepo := repository.NewReindexJobRepository(dbPool)
	txManager := repository.NewPostgresTransactionManager(dbPool)

	rawEmbedder := ollama.NewEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, cfg.OllamaTimeout)
	embedder, err := ollama.NewCachedEmbedder(rawEmbedder, cfg.EmbedCacheSize)
	if err != nil {
		log.Error("failed to build embedding cache", "error", err)
		os.Exit(1)
	}

	generator := ollama.NewGenerator(cfg.GenerationURL, cfg.GeneratorModel, generationTemperature, cfg.OllamaTimeout)
	judge := ollama.NewGenerator(cfg.JudgeURL, cfg.JudgeModel, judgeTemperature, cfg.OllamaTimeout)
	scholarClient := arxiv.NewClient(cfg.ArxivURL, cfg.ArxivTimeout)

	// 5. Initialize Usecases
	splitter := domain.NewSplitter()

	ingestUsecase := usecase.NewIngestDocumentUsecase(
		splitter,
		embedder,
		vectorStore,
		lexicalIndex,
		txManager,
	)

	retrieveUsecase := usecase.NewRetrieveContextUsecase(embedder, vectorStore, usecase.RetrieverConfig{
		TopK:             cfg.Retrieval.TopK,
		FetchK:           cfg.Retrieval.FetchK,
		MMRLambda:        cfg.Retrieval.MMRLambda,
		FilterMultiplier: cfg.Retrieval.FilterMultiplier,
	})

	promptBuilder := usecase.NewPromptBuilder()
	verifyUsecase := usecase.NewVerifyAnswerUsecase(
		judge,
		generator,
		retrieveUsecase,
		promptBuilder,
		cfg.Verification.SupplementalLimit,
		cfg.AnswerMaxTokens,
	)
	answerUsecase := usecase.NewAnswerUsecase(
		retrieveUsecase,
		promptBuilder,
		generator,
		verifyUsecase,
		conversationStore,
		cfg.AnswerMaxTokens,
		cfg.Verification.DefaultThreshold,
	)
	recommendUsecase := usecase.NewRecommendUsecase(
		embedder,
		vectorStore,
		lexicalIndex,
		scholarClient,
		generator,
		cfg.RecommendN,
	)

	// 6. Initialize & Start Worker
	reindexWorker := worker.NewReindexWorker(jobRepo, lexicalIndex, ingestUsecase, log)
	reindexWorker.Start()
	defer func() {
		log.Info("Stopping worker...")
		reindexWorker.Stop()
	}()

	// 7. Initialize Echo
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// 8. Register Handlers
	handler := httpapi.NewHandler(ingestUsecase, answerUsecase, recommendUsecase, conversationStore, lexicalIndex, jobRepo)
	handler.Register(e)

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
		log.Info("Starting server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 11. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
}
