package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fiche-worker/internal/api"
	"fiche-worker/internal/assistant"
	"fiche-worker/internal/config"
	"fiche-worker/internal/database"
	"fiche-worker/internal/jobs"
	"fiche-worker/internal/orchestrator"
	"fiche-worker/internal/storage"
	"fiche-worker/internal/worker"

	"github.com/lpernett/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	// Load configuration
	cfg := config.Load()

	// Initialize storage
	storageBackend, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}
	documentService := storage.NewDocumentService(storageBackend)

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Initialize services
	jobRepo := jobs.NewJobRepository(db.DB)
	jobService := jobs.NewJobService(jobRepo)
	artifactRepo := jobs.NewArtifactRepository(db.DB)

	assistantClient, err := assistant.NewClient(assistant.Config{
		BaseURL: cfg.AssistantBaseURL,
		APIKey:  cfg.AssistantAPIKey,
		Model:   cfg.AssistantModel,
		Timeout: cfg.AssistantTimeout,
	})
	if err != nil {
		log.Fatal("Failed to initialize assistant client:", err)
	}

	orch := orchestrator.New(assistantClient, documentService, jobService, artifactRepo, orchestrator.Config{
		AttachPolicy:      cfg.AttachPolicy,
		InteractivePolicy: cfg.InteractivePolicy,
		BackgroundPolicy:  cfg.BackgroundPolicy,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker pool
	pool := worker.NewWorkerPool(jobService, orch, &worker.PoolConfig{
		WorkerCount:  cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
	})
	if err := pool.Start(ctx); err != nil {
		log.Fatal("Failed to start worker pool:", err)
	}

	// Start cleanup service
	cleanupService := jobs.NewCleanupService(jobService, cfg.CleanupInterval, cfg.JobMaxAge)
	go cleanupService.Start(ctx)

	// Setup router
	router := api.SetupRouter(jobService, orch, pool)

	// Start server in goroutine
	log.Printf("Starting fiche-worker on port %s", cfg.Port)
	log.Printf("Database: connected")
	log.Printf("Storage type: %s", cfg.Storage.Type)
	if cfg.Storage.Type == "filesystem" {
		log.Printf("Storage path: %s", cfg.Storage.BasePath)
	}
	log.Printf("Worker pool: %d workers, poll interval %v", cfg.WorkerCount, cfg.PollInterval)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- router.Run(":" + cfg.Port)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal("Server failed to start:", err)
	case sig := <-quit:
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
		if err := pool.Stop(); err != nil {
			log.Printf("Error stopping worker pool: %v", err)
		}
		cleanupService.Stop()
		log.Println("Server shutdown complete")
	}
}
