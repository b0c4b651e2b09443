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

	"esg-rag/internal/adapter/contextgen"
	"esg-rag/internal/adapter/embedding"
	"esg-rag/internal/adapter/modelrouter"
	"esg-rag/internal/adapter/rag_http"
	"esg-rag/internal/adapter/repository"
	"esg-rag/internal/domain"
	"esg-rag/internal/infra"
	"esg-rag/internal/infra/config"
	"esg-rag/internal/infra/logger"
	"esg-rag/internal/infra/ratelimit"
	"esg-rag/internal/usecase"
	"esg-rag/internal/usecase/retrieval"
	"esg-rag/internal/worker"
)

func main() {
	// 1. Load config
	cfg := config.Load()

	// 2. Logger
	log := logger.NewWithOTel(cfg.OTelEnabled)
	slog.SetDefault(log)

	// 3. Database
	dsn := infra.PostgresDSN(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	dbPool, err := infra.NewPostgresDB(context.Background(), dsn)
	if err != nil {
		log.Error("failed to connect to db", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()

	// 4. Adapters
	chunkRepo := repository.NewChunkRepository(dbPool)
	docRepo := repository.NewDocumentRepository(dbPool)
	jobRepo := repository.NewJobRepository(dbPool)
	traceRepo := repository.NewSearchTraceRepository(dbPool)
	txManager := repository.NewPostgresTransactionManager(dbPool)

	embedder := embedding.FromConfig(cfg)
	generator := modelrouter.New(cfg.ModelRouterURL, cfg.GenerationModel)
	utility := modelrouter.New(cfg.ModelRouterURL, cfg.UtilityModel)

	var contextGen domain.ContextGenerator = contextgen.HeuristicContextualizer{}
	if cfg.ContextLLMRateLimit > 0 {
		limiter := ratelimit.NewSlidingWindow(cfg.ContextLLMRateLimit, time.Minute)
		contextGen = contextgen.NewLLMContextualizer(utility, limiter, log)
	}

	// 5. Usecases
	retrievalCfg := usecase.RetrievalConfigFromEnv(cfg)
	pipeline := retrieval.NewPipeline(chunkRepo, embedder, utility, retrievalCfg.Params(), log)

	answerUsecase, err := usecase.NewAnswerUsecase(
		pipeline,
		generator,
		traceRepo,
		usecase.NewXMLPromptBuilder(),
		retrievalCfg,
		cfg.GenerationTokens,
		cfg.AnswerCacheSize,
		log,
	)
	if err != nil {
		log.Error("failed to build answer usecase", slog.String("error", err.Error()))
		os.Exit(1)
	}
	retrieveUsecase := usecase.NewRetrieveUsecase(pipeline, retrievalCfg, log)
	processUsecase := usecase.NewProcessDocumentUsecase(chunkRepo, docRepo, embedder, contextGen, txManager, log)
	bulkUsecase := usecase.NewBulkAnswerUsecase(answerUsecase, log)

	// 6. Worker
	pollInterval := time.Duration(cfg.WorkerPollIntervalMs) * time.Millisecond
	jobLogs := logger.NewContextLogger(log, "esg-rag")
	jobWorker := worker.NewJobWorker(jobRepo, processUsecase, bulkUsecase, pollInterval, jobLogs)
	jobWorker.Start()
	defer jobWorker.Stop()

	// 7. HTTP
	e := echo.New()
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request_completed",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	handler := rag_http.NewHandler(answerUsecase, retrieveUsecase, docRepo, jobRepo)
	handler.RegisterRoutes(e)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		if err := dbPool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("starting server", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 8. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
