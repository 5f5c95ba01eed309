/**
 * Document Translation Orchestrator - Main Entry Point
 *
 * Public entry point of the pipeline. Accepts an image upload, calls the
 * OCR service, sends the recognized lines to the translation service and
 * returns translated text boxes.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/doctranslate/internal/clients"
	"github.com/adverant/nexus/doctranslate/internal/config"
	"github.com/adverant/nexus/doctranslate/internal/handlers"
	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/pipeline"
	"github.com/adverant/nexus/doctranslate/internal/server"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.LoadOrchestratorConfig()
	if err != nil {
		logging.NewLogger("main").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Configure(cfg.Log.Level, cfg.Log.Format, "orchestrator", nil)
	logger := logging.NewLogger("main")
	if envErr != nil {
		logger.Debug(".env not found, using system environment variables")
	}

	ocrClient, err := clients.NewOCRClient(cfg.OCRURL)
	if err != nil {
		logger.Error("Failed to create OCR client", "error", err)
		os.Exit(1)
	}

	translateClient, err := clients.NewTranslationClient(cfg.TranslateURL)
	if err != nil {
		logger.Error("Failed to create translation client", "error", err)
		os.Exit(1)
	}

	orch, err := pipeline.NewOrchestrator(ocrClient, translateClient, pipeline.Config{
		OCRTimeout:       cfg.OCRTimeout,
		TranslateTimeout: cfg.TranslateTimeout,
		UploadDir:        cfg.UploadDir,
		MaxUploadSize:    cfg.MaxUploadSize,
	})
	if err != nil {
		logger.Error("Failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	handler := handlers.NewOrchestratorHandler(orch, []pipeline.HealthProber{ocrClient, translateClient}, handlers.OrchestratorConfig{
		Version:           cfg.Version,
		OCRURL:            cfg.OCRURL,
		TranslateURL:      cfg.TranslateURL,
		DefaultTargetLang: cfg.DefaultTargetLang,
		DefaultSourceLang: cfg.DefaultSourceLang,
		MaxUploadSize:     cfg.MaxUploadSize,
		StatusTimeout:     cfg.StatusTimeout,
	})

	logger.Info("===========================================")
	logger.Info("Orchestrator is READY",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env,
	)
	logger.Info("Upstreams", "ocr", cfg.OCRURL, "translate", cfg.TranslateURL)
	logger.Info("Budgets", "ocr_timeout", cfg.OCRTimeout, "translate_timeout", cfg.TranslateTimeout)
	logger.Info("===========================================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New("orchestrator", cfg.Server, handlers.NewRouter(logging.NewLogger("http"), handler)).Run(ctx); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}
