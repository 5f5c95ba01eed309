/**
 * OCR Service - Main Entry Point
 *
 * Line-level text detection over HTTP. Tesseract is used when libtesseract
 * is available; otherwise the placeholder engine answers with synthetic
 * blocks so the rest of the pipeline stays testable.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/doctranslate/internal/config"
	"github.com/adverant/nexus/doctranslate/internal/handlers"
	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/ocr"
	"github.com/adverant/nexus/doctranslate/internal/ocr/tesseract"
	"github.com/adverant/nexus/doctranslate/internal/server"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.LoadOCRConfig()
	if err != nil {
		logging.NewLogger("main").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Configure(cfg.Log.Level, cfg.Log.Format, "ocr-service", nil)
	logger := logging.NewLogger("main")
	if envErr != nil {
		logger.Debug(".env not found, using system environment variables")
	}

	svc := ocr.NewService(selectEngine(cfg, logger))
	handler := handlers.NewOCRHandler(svc, cfg.Version, cfg.MaxUploadSize)

	logger.Info("===========================================")
	logger.Info("OCR service is READY",
		"addr", cfg.Server.Addr(),
		"engine", svc.CurrentEngine(),
		"available", svc.AvailableEngines(),
		"languages", cfg.Languages,
	)
	logger.Info("===========================================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New("ocr-service", cfg.Server, handlers.NewRouter(logging.NewLogger("http"), handler)).Run(ctx); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}

func selectEngine(cfg *config.OCRConfig, logger *logging.Logger) ocr.ServiceConfig {
	placeholder := ocr.NewPlaceholderEngine()
	svcCfg := ocr.ServiceConfig{
		Fallback:      placeholder,
		MinConfidence: cfg.MinConfidence,
	}

	if cfg.Engine == "placeholder" {
		svcCfg.Primary = placeholder
		return svcCfg
	}

	if !tesseract.Available() {
		if cfg.Engine == "tesseract" {
			logger.Warn("Tesseract requested but unavailable, using placeholder engine")
		} else {
			logger.Info("Tesseract unavailable, using placeholder engine")
		}
		svcCfg.Primary = placeholder
		return svcCfg
	}

	svcCfg.Primary = tesseract.New(tesseract.Config{
		Languages:      cfg.Languages,
		TessdataPrefix: cfg.TessdataPrefix,
		MinConfidence:  cfg.MinConfidence,
	})
	return svcCfg
}
