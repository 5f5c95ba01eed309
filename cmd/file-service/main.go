/**
 * File Service - Main Entry Point
 *
 * Upload, metadata, download and cleanup for documents headed into the
 * translation pipeline.
 *
 * Architecture:
 * - Record store: memory, Redis or PostgreSQL
 * - Blob store: local disk or any S3-compatible bucket
 * - Preprocessing: inline goroutines or an asynq queue on Redis
 * - Retention sweeper removing files older than FILE_RETENTION
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/doctranslate/internal/config"
	"github.com/adverant/nexus/doctranslate/internal/files"
	"github.com/adverant/nexus/doctranslate/internal/handlers"
	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/preprocess"
	"github.com/adverant/nexus/doctranslate/internal/preprocess/pdf"
	"github.com/adverant/nexus/doctranslate/internal/queue"
	"github.com/adverant/nexus/doctranslate/internal/server"
	"github.com/adverant/nexus/doctranslate/internal/storage"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.LoadFileServiceConfig()
	if err != nil {
		logging.NewLogger("main").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Configure(cfg.Log.Level, cfg.Log.Format, "file-service", nil)
	logger := logging.NewLogger("main")
	if envErr != nil {
		logger.Debug(".env not found, using system environment variables")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("File service exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func run(cfg *config.FileServiceConfig, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to storage...", "records", cfg.RecordStore, "blobs", cfg.BlobStore)
	records, err := openRecordStore(cfg)
	if err != nil {
		return err
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		records.Close()
		return err
	}

	storageManager := storage.NewStorageManager(records, blobs)
	defer func() {
		if err := storageManager.Close(); err != nil {
			logger.Error("Error closing storage manager", "error", err)
		}
	}()
	logger.Info("Storage manager initialized")

	dispatcher, err := openDispatcher(cfg)
	if err != nil {
		return err
	}

	preprocessor := preprocess.NewPreprocessor(pdf.NewFitzInspector(), cfg.ThumbnailMax)
	svc := files.NewService(storageManager, preprocessor, dispatcher, files.Config{
		MaxFileSize: cfg.MaxFileSize,
	})

	if err := dispatcher.Start(svc.Preprocess); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := dispatcher.Stop(stopCtx); err != nil {
			logger.Error("Error stopping dispatcher", "error", err)
		} else {
			logger.Info("Dispatcher stopped")
		}
	}()

	go storageManager.RunSweeper(ctx, cfg.SweepInterval, cfg.Retention)

	handler := handlers.NewFilesHandler(svc, handlers.FilesConfig{
		Version:      cfg.Version,
		UploadDir:    cfg.UploadDir,
		ProcessedDir: cfg.ProcessedDir,
		RecordStore:  cfg.RecordStore,
		BlobStore:    cfg.BlobStore,
	})

	logger.Info("===========================================")
	logger.Info("File service is READY",
		"addr", cfg.Server.Addr(),
		"records", cfg.RecordStore,
		"blobs", cfg.BlobStore,
		"queue", cfg.QueueBackend,
		"max_file_size", cfg.MaxFileSize,
		"retention", cfg.Retention,
	)
	logger.Info("===========================================")

	return server.New("file-service", cfg.Server, handlers.NewRouter(logging.NewLogger("http"), handler)).Run(ctx)
}

func openRecordStore(cfg *config.FileServiceConfig) (storage.RecordStore, error) {
	switch cfg.RecordStore {
	case "redis":
		store, err := storage.NewRedisRecordStore(storage.RedisStoreConfig{
			URL: cfg.RedisURL,
			TTL: 2 * cfg.Retention,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis record store: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := storage.NewPostgresRecordStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres record store: %w", err)
		}
		return store, nil
	default:
		return storage.NewMemoryRecordStore(), nil
	}
}

func openBlobStore(ctx context.Context, cfg *config.FileServiceConfig) (storage.BlobStore, error) {
	if cfg.BlobStore == "s3" {
		initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		store, err := storage.NewS3BlobStore(initCtx, storage.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathMode,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 blob store: %w", err)
		}
		return store, nil
	}

	store, err := storage.NewDiskBlobStore(cfg.UploadDir, cfg.ProcessedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize disk blob store: %w", err)
	}
	return store, nil
}

func openDispatcher(cfg *config.FileServiceConfig) (queue.Dispatcher, error) {
	if cfg.QueueBackend == "asynq" {
		d, err := queue.NewAsynqDispatcher(queue.AsynqConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.QueueConcurrency,
			ProcessingTimeout: cfg.ProcessingTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize asynq dispatcher: %w", err)
		}
		return d, nil
	}
	return queue.NewInlineDispatcher(cfg.ProcessingTimeout), nil
}
