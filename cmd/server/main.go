package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/sheetsync/internal/config"
	"github.com/prudhvinik1/sheetsync/internal/database"
	"github.com/prudhvinik1/sheetsync/internal/handlers"
	"github.com/prudhvinik1/sheetsync/internal/repositories"
	"github.com/prudhvinik1/sheetsync/internal/services"
	"github.com/prudhvinik1/sheetsync/internal/sheets"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	if err := database.Migrate(ctx, postgresPool); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	recordRepo := repositories.NewPostgresRecordRepository(postgresPool)
	eventRepo := repositories.NewPostgresSyncEventRepository(postgresPool)
	tokenCache := repositories.NewRedisTokenCache(redisClient)
	locker := repositories.NewRedisKeyLocker(redisClient, cfg.Sync.LockTTL)

	// Spreadsheet side
	sheetsHTTP := &http.Client{Timeout: cfg.Sheets.HTTPTimeout}
	signer := sheets.NewServiceAccountTokenProvider(cfg.Sheets.Credentials(), sheetsHTTP)
	tokens := sheets.NewCachingTokenProvider(signer, tokenCache, signer.ClientEmail(), slog.Default())
	sheetsClient := sheets.NewClient(sheetsHTTP, cfg.Sheets.BaseURL, cfg.Sheets.SpreadsheetID)

	// Services
	syncService := services.NewSyncService(tokens, sheetsClient, locker, eventRepo, cfg.Sync.ImportChunkSize, slog.Default())
	dispatcher := services.NewDispatcher(syncService, cfg.Sync.Workers, cfg.Sync.QueueSize, cfg.Sync.JobTimeout, slog.Default())
	dispatcher.Start()
	recordService := services.NewRecordService(recordRepo, dispatcher, syncService, slog.Default())
	authService := services.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)

	// Initialize HTTP Server
	api := handlers.NewServer(recordService, syncService, eventRepo, authService)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: api.Router(cfg.Sync.JobTimeout),
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	// Pending syncs still get their chance after the listener closes.
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		log.Printf("Sync queue not drained: %v", err)
	}

	log.Println("Server stopped gracefully")
}
