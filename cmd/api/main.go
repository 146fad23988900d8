package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/api"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/config"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/db"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/queue"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/services"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/storage"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/worker"
)

func main() {
	log.Println("Starting Auto Reels Render...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize object storage
	stor := storage.New(cfg.StorageURL, cfg.StorageServiceKey, cfg.StorageBucket)
	log.Println("Initialized object storage")

	// Create API handler
	handler := api.NewHandler(database, q, stor, cfg.RemoteRenderEnabled)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		extractor := services.NewExtractor(cfg.AubioBin)
		ffmpegSvc := services.NewFFmpegService(cfg.FFmpegTempDir, cfg.EncodeTimeout)

		// Remote renderer is optional; when disabled every bucket encodes
		// locally.
		var remote *services.RemoteRenderClient
		if cfg.RemoteRenderEnabled {
			remote = services.NewRemoteRenderClient(cfg.RemoteRenderURL, cfg.RemoteRenderAPIKey, cfg.RemoteComposition)
			log.Printf("Remote rendering enabled (composition: %s)", cfg.RemoteComposition)
		}

		// Whisper transcription is optional; without it karaoke presets
		// degrade to cue-level timing.
		var transcriber *services.Transcriber
		if cfg.OpenAIKey != "" {
			transcriber = services.NewTranscriber(cfg.OpenAIKey)
			log.Println("Whisper transcription enabled")
		}

		mailer := services.NewMailer(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
		if mailer.Enabled() {
			log.Println("Completion emails enabled")
		}

		finalizer := worker.NewFinalizer(database, mailer, stor.GetPublicURL)

		w := worker.New(database, q, stor, extractor, ffmpegSvc, remote, transcriber,
			finalizer, cfg.FontsDir, cfg.LocalEncodeConcurrency, cfg.RemoteRenderConcurrency)

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if workerCancel != nil {
		workerCancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
