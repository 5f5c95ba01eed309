/**
 * Translation Service - Main Entry Point
 *
 * Batch line translation over HTTP, backed by an Ollama model or the
 * placeholder engine.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/doctranslate/internal/config"
	"github.com/adverant/nexus/doctranslate/internal/handlers"
	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/server"
	"github.com/adverant/nexus/doctranslate/internal/translation"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.LoadTranslationConfig()
	if err != nil {
		logging.NewLogger("main").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Configure(cfg.Log.Level, cfg.Log.Format, "translation-service", nil)
	logger := logging.NewLogger("main")
	if envErr != nil {
		logger.Debug(".env not found, using system environment variables")
	}

	engine := selectEngine(cfg, logger)
	available := []string{translation.EnginePlaceholder}
	if engine.Name() == translation.EngineOllama {
		available = []string{translation.EngineOllama, translation.EnginePlaceholder}
	}

	svc := translation.NewService(translation.ServiceConfig{
		Engine:    engine,
		Available: available,
		MaxLines:  cfg.MaxLines,
	})
	handler := handlers.NewTranslationHandler(svc, cfg.Version)

	logger.Info("===========================================")
	logger.Info("Translation service is READY",
		"addr", cfg.Server.Addr(),
		"engine", svc.CurrentEngine(),
		"model", cfg.OllamaModel,
	)
	logger.Info("===========================================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New("translation-service", cfg.Server, handlers.NewRouter(logging.NewLogger("http"), handler)).Run(ctx); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}

func selectEngine(cfg *config.TranslationConfig, logger *logging.Logger) translation.Engine {
	if cfg.Engine == "placeholder" {
		return translation.NewPlaceholderEngine()
	}

	ollama := translation.NewOllamaEngine(translation.OllamaConfig{
		Host:        cfg.OllamaHost,
		Model:       cfg.OllamaModel,
		Timeout:     cfg.OllamaTimeout,
		Temperature: cfg.OllamaTemperature,
		TopP:        cfg.OllamaTopP,
		MaxTokens:   cfg.OllamaMaxTokens,
	})

	if cfg.Engine == "ollama" {
		return ollama
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ollama.HealthCheck(ctx); err != nil {
		logger.Warn("Ollama unreachable, using placeholder engine", "host", cfg.OllamaHost, "error", err)
		return translation.NewPlaceholderEngine()
	}
	return ollama
}
