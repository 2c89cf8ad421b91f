package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/llmtuner/llm-tuner-platform/backend/config"
	"github.com/llmtuner/llm-tuner-platform/backend/handlers"
	"github.com/llmtuner/llm-tuner-platform/backend/middleware"
	"github.com/llmtuner/llm-tuner-platform/backend/monitor"
	"github.com/llmtuner/llm-tuner-platform/backend/registry"
	"github.com/llmtuner/llm-tuner-platform/backend/repository"
	"github.com/llmtuner/llm-tuner-platform/backend/storage"
	"github.com/llmtuner/llm-tuner-platform/backend/submitter"
	"github.com/llmtuner/llm-tuner-platform/backend/trainer"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	log.Info("Starting LLM Tuner training orchestrator")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := cfg.OpenDatabase()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	repo := repository.NewGormRepository(db)

	store, err := storage.NewMinIOStore(storage.MinIOConfig{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Bucket:    cfg.Minio.Bucket,
		UseSSL:    cfg.Minio.UseSSL,
	}, log)
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("Failed to ensure bucket: %v", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Fatalf("Failed to load AWS configuration: %v", err)
	}
	backend := trainer.NewSageMakerBackend(awsCfg, log)

	reg := registry.New()
	sub := submitter.New(backend, repo, reg, submitter.Options{
		RoleARN:       cfg.AWS.ExecutionRole,
		TrainingImage: cfg.AWS.TrainingImage,
		MaxRuntime:    cfg.MaxRuntime,
		SubmitTimeout: cfg.SubmitTimeout,
		EstimateHours: cfg.EstimateHours,
	}, log)
	tracker := monitor.NewTracker(repo, backend, reg, monitor.Options{
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
		StopTimeout:  cfg.StopTimeout,
	}, log)

	// Pick up jobs that were in flight when the process last stopped.
	if err := tracker.Resume(context.Background()); err != nil {
		log.Fatalf("Failed to resume active jobs: %v", err)
	}

	handler := handlers.NewHandler(repo, reg, store, sub, tracker, log)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.UserIdentityMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api/v1")
	{
		training := api.Group("/training")
		{
			training.POST("", handler.CreateTrainingJob)
			training.GET("", handler.ListTrainingJobs)
			training.GET("/:id", handler.GetTrainingJob)
			training.POST("/:id/stop", handler.StopTrainingJob)
		}
		api.GET("/cost-estimate", handler.CostEstimate)
		api.GET("/models", handler.ListBaseModels)
		api.GET("/profiles", handler.ListResourceProfiles)
		api.POST("/upload", handler.UploadFile)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("Server forced to shutdown: %v", err)
	}

	tracker.Stop()
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("Server stopped gracefully")
}
