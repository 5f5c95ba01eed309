/**
 * Configuration for the document translation services
 *
 * Every binary loads its configuration once from environment variables
 * (optionally seeded from a .env file by main). There is no runtime
 * reconfiguration.
 */

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig holds the HTTP listener settings shared by every service
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// GRPCHealthPort enables the gRPC health service when > 0
	GRPCHealthPort int
}

// Addr returns the host:port the HTTP server listens on
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// OrchestratorConfig holds orchestrator configuration
type OrchestratorConfig struct {
	Server ServerConfig
	Log    LogConfig

	// Upstream provider endpoints
	OCRURL       string
	TranslateURL string

	// Per-call upstream budgets
	OCRTimeout       time.Duration
	TranslateTimeout time.Duration
	StatusTimeout    time.Duration

	// UploadDir holds the request-scoped temporary copies of uploads
	UploadDir     string
	MaxUploadSize int64

	DefaultTargetLang string
	DefaultSourceLang string

	Version string
	Env     string
}

// OCRConfig holds OCR service configuration
type OCRConfig struct {
	Server ServerConfig
	Log    LogConfig

	// Engine is one of auto, tesseract, placeholder
	Engine         string
	Languages      []string
	TessdataPrefix string
	MinConfidence  float64
	MaxUploadSize  int64

	Version string
}

// TranslationConfig holds translation service configuration
type TranslationConfig struct {
	Server ServerConfig
	Log    LogConfig

	// Engine is one of auto, ollama, placeholder
	Engine string

	OllamaHost        string
	OllamaModel       string
	OllamaTimeout     time.Duration
	OllamaTemperature float64
	OllamaTopP        float64
	OllamaMaxTokens   int

	MaxLines int
	Version  string
}

// FileServiceConfig holds file service configuration
type FileServiceConfig struct {
	Server ServerConfig
	Log    LogConfig

	UploadDir    string
	ProcessedDir string
	MaxFileSize  int64

	// RecordStore is one of memory, redis, postgres
	RecordStore string
	RedisURL    string
	DatabaseURL string

	// BlobStore is one of disk, s3
	BlobStore     string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3UsePathMode bool

	// QueueBackend is one of inline, asynq
	QueueBackend      string
	QueueName         string
	QueueConcurrency  int
	ProcessingTimeout time.Duration

	Retention     time.Duration
	SweepInterval time.Duration
	ThumbnailMax  int

	Version string
}

// LoadOrchestratorConfig loads orchestrator configuration from environment variables
func LoadOrchestratorConfig() (*OrchestratorConfig, error) {
	cfg := &OrchestratorConfig{
		Server:            loadServerConfig("ORCHESTRATOR_PORT", 8000),
		Log:               loadLogConfig(),
		OCRURL:            getEnvOrDefault("OCR_URL", "http://ocr:7010/ocr"),
		TranslateURL:      getEnvOrDefault("TRANSLATE_URL", "http://nmt:7020/translate"),
		OCRTimeout:        getEnvAsDurationOrDefault("OCR_TIMEOUT", 60*time.Second),
		TranslateTimeout:  getEnvAsDurationOrDefault("TRANSLATE_TIMEOUT", 120*time.Second),
		StatusTimeout:     getEnvAsDurationOrDefault("STATUS_TIMEOUT", 10*time.Second),
		UploadDir:         getEnvOrDefault("UPLOAD_DIR", os.TempDir()),
		MaxUploadSize:     getEnvAsInt64OrDefault("MAX_UPLOAD_SIZE_MB", 50) * 1024 * 1024,
		DefaultTargetLang: getEnvOrDefault("DEFAULT_TARGET_LANG", "zh"),
		DefaultSourceLang: getEnvOrDefault("DEFAULT_SOURCE_LANG", "auto"),
		Version:           getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
		Env:               getEnvOrDefault("APP_ENV", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *OrchestratorConfig) Validate() error {
	if err := validateURL("OCR_URL", c.OCRURL); err != nil {
		return err
	}

	if err := validateURL("TRANSLATE_URL", c.TranslateURL); err != nil {
		return err
	}

	if c.OCRTimeout <= 0 {
		return fmt.Errorf("OCR_TIMEOUT must be positive, got %v", c.OCRTimeout)
	}

	if c.TranslateTimeout <= 0 {
		return fmt.Errorf("TRANSLATE_TIMEOUT must be positive, got %v", c.TranslateTimeout)
	}

	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}

	if c.MaxUploadSize < 1024 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be at least 1, got %d bytes", c.MaxUploadSize)
	}

	return c.Server.validate("ORCHESTRATOR_PORT")
}

// LoadOCRConfig loads OCR service configuration from environment variables
func LoadOCRConfig() (*OCRConfig, error) {
	cfg := &OCRConfig{
		Server:         loadServerConfig("OCR_PORT", 7010),
		Log:            loadLogConfig(),
		Engine:         strings.ToLower(getEnvOrDefault("OCR_ENGINE", "auto")),
		Languages:      getEnvAsListOrDefault("OCR_LANGUAGES", "+", []string{"chi_sim", "eng"}),
		TessdataPrefix: getEnvOrDefault("TESSDATA_PREFIX", ""),
		MinConfidence:  getEnvAsFloatOrDefault("OCR_MIN_CONFIDENCE", 0.5),
		MaxUploadSize:  getEnvAsInt64OrDefault("MAX_UPLOAD_SIZE_MB", 50) * 1024 * 1024,
		Version:        getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *OCRConfig) Validate() error {
	switch c.Engine {
	case "auto", "tesseract", "placeholder":
	default:
		return fmt.Errorf("OCR_ENGINE must be one of auto, tesseract, placeholder, got %q", c.Engine)
	}

	if len(c.Languages) == 0 {
		return fmt.Errorf("OCR_LANGUAGES must name at least one language")
	}

	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("OCR_MIN_CONFIDENCE must be between 0 and 1, got %v", c.MinConfidence)
	}

	return c.Server.validate("OCR_PORT")
}

// LoadTranslationConfig loads translation service configuration from environment variables
func LoadTranslationConfig() (*TranslationConfig, error) {
	engine := strings.ToLower(getEnvOrDefault("TRANSLATION_ENGINE", ""))
	if engine == "" {
		// USE_OLLAMA predates TRANSLATION_ENGINE and still selects the engine when set
		engine = "auto"
		if os.Getenv("USE_OLLAMA") != "" {
			engine = "placeholder"
			if getEnvAsBoolOrDefault("USE_OLLAMA", false) {
				engine = "ollama"
			}
		}
	}

	cfg := &TranslationConfig{
		Server:            loadServerConfig("TRANSLATION_PORT", 7020),
		Log:               loadLogConfig(),
		Engine:            engine,
		OllamaHost:        strings.TrimRight(getEnvOrDefault("OLLAMA_HOST", "http://host.docker.internal:11434"), "/"),
		OllamaModel:       getEnvOrDefault("OLLAMA_MODEL", "llama3.2:latest"),
		OllamaTimeout:     getEnvAsDurationOrDefault("OLLAMA_TIMEOUT", 30*time.Second),
		OllamaTemperature: getEnvAsFloatOrDefault("OLLAMA_TEMPERATURE", 0.3),
		OllamaTopP:        getEnvAsFloatOrDefault("OLLAMA_TOP_P", 0.9),
		OllamaMaxTokens:   getEnvAsIntOrDefault("OLLAMA_MAX_TOKENS", 1000),
		MaxLines:          getEnvAsIntOrDefault("TRANSLATION_MAX_LINES", 500),
		Version:           getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *TranslationConfig) Validate() error {
	switch c.Engine {
	case "auto", "ollama", "placeholder":
	default:
		return fmt.Errorf("TRANSLATION_ENGINE must be one of auto, ollama, placeholder, got %q", c.Engine)
	}

	if c.Engine != "placeholder" {
		if err := validateURL("OLLAMA_HOST", c.OllamaHost); err != nil {
			return err
		}
		if c.OllamaModel == "" {
			return fmt.Errorf("OLLAMA_MODEL is required when the ollama engine is enabled")
		}
	}

	if c.MaxLines < 1 {
		return fmt.Errorf("TRANSLATION_MAX_LINES must be positive, got %d", c.MaxLines)
	}

	return c.Server.validate("TRANSLATION_PORT")
}

// LoadFileServiceConfig loads file service configuration from environment variables
func LoadFileServiceConfig() (*FileServiceConfig, error) {
	cfg := &FileServiceConfig{
		Server:            loadServerConfig("FILE_SERVICE_PORT", 8010),
		Log:               loadLogConfig(),
		UploadDir:         getEnvOrDefault("UPLOAD_DIR", "./temp/uploads"),
		ProcessedDir:      getEnvOrDefault("PROCESSED_DIR", "./temp/processed"),
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 100) * 1024 * 1024,
		RecordStore:       strings.ToLower(getEnvOrDefault("FILE_STORE", "memory")),
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		BlobStore:         strings.ToLower(getEnvOrDefault("BLOB_STORE", "disk")),
		S3Bucket:          getEnvOrDefault("S3_BUCKET", ""),
		S3Region:          getEnvOrDefault("S3_REGION", "auto"),
		S3Endpoint:        getEnvOrDefault("S3_ENDPOINT", ""),
		S3AccessKey:       getEnvOrDefault("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:       getEnvOrDefault("S3_SECRET_ACCESS_KEY", ""),
		S3UsePathMode:     getEnvAsBoolOrDefault("S3_USE_PATH_STYLE", true),
		QueueBackend:      strings.ToLower(getEnvOrDefault("QUEUE_BACKEND", "inline")),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "files:preprocess"),
		QueueConcurrency:  getEnvAsIntOrDefault("QUEUE_CONCURRENCY", 4),
		ProcessingTimeout: getEnvAsDurationOrDefault("PROCESSING_TIMEOUT", 2*time.Minute),
		Retention:         getEnvAsDurationOrDefault("FILE_RETENTION", 24*time.Hour),
		SweepInterval:     getEnvAsDurationOrDefault("SWEEP_INTERVAL", time.Hour),
		ThumbnailMax:      getEnvAsIntOrDefault("THUMBNAIL_MAX_SIZE", 2048),
		Version:           getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *FileServiceConfig) Validate() error {
	if c.MaxFileSize < 1024*1024 || c.MaxFileSize > 10*1024*1024*1024 {
		return fmt.Errorf("MAX_FILE_SIZE must be between 1 and 10240 MB, got %d bytes", c.MaxFileSize)
	}

	switch c.RecordStore {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when FILE_STORE=redis")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when FILE_STORE=postgres")
		}
	default:
		return fmt.Errorf("FILE_STORE must be one of memory, redis, postgres, got %q", c.RecordStore)
	}

	switch c.BlobStore {
	case "disk":
		if c.UploadDir == "" || c.ProcessedDir == "" {
			return fmt.Errorf("UPLOAD_DIR and PROCESSED_DIR are required when BLOB_STORE=disk")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_STORE=s3")
		}
	default:
		return fmt.Errorf("BLOB_STORE must be one of disk, s3, got %q", c.BlobStore)
	}

	switch c.QueueBackend {
	case "inline":
	case "asynq":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when QUEUE_BACKEND=asynq")
		}
		if c.QueueConcurrency < 1 || c.QueueConcurrency > 100 {
			return fmt.Errorf("QUEUE_CONCURRENCY must be between 1 and 100, got %d", c.QueueConcurrency)
		}
	default:
		return fmt.Errorf("QUEUE_BACKEND must be one of inline, asynq, got %q", c.QueueBackend)
	}

	if c.Retention <= 0 {
		return fmt.Errorf("FILE_RETENTION must be positive, got %v", c.Retention)
	}

	if c.ThumbnailMax < 16 {
		return fmt.Errorf("THUMBNAIL_MAX_SIZE must be at least 16, got %d", c.ThumbnailMax)
	}

	return c.Server.validate("FILE_SERVICE_PORT")
}

func loadServerConfig(portKey string, defaultPort int) ServerConfig {
	return ServerConfig{
		Host:            getEnvOrDefault("HOST", "0.0.0.0"),
		Port:            getEnvAsIntOrDefault(portKey, getEnvAsIntOrDefault("PORT", defaultPort)),
		ReadTimeout:     getEnvAsDurationOrDefault("HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvAsDurationOrDefault("HTTP_WRITE_TIMEOUT", 200*time.Second),
		IdleTimeout:     getEnvAsDurationOrDefault("HTTP_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout: getEnvAsDurationOrDefault("SHUTDOWN_TIMEOUT", 15*time.Second),
		GRPCHealthPort:  getEnvAsIntOrDefault("GRPC_HEALTH_PORT", 0),
	}
}

func loadLogConfig() LogConfig {
	level := getEnvOrDefault("LOG_LEVEL", "info")
	if getEnvAsBoolOrDefault("DEBUG", false) {
		level = "debug"
	}
	return LogConfig{
		Level:  level,
		Format: getEnvOrDefault("LOG_FORMAT", "json"),
	}
}

func (s ServerConfig) validate(portKey string) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", portKey, s.Port)
	}
	if s.GRPCHealthPort < 0 || s.GRPCHealthPort > 65535 {
		return fmt.Errorf("GRPC_HEALTH_PORT must be between 0 and 65535, got %d", s.GRPCHealthPort)
	}
	if s.GRPCHealthPort != 0 && s.GRPCHealthPort == s.Port {
		return fmt.Errorf("GRPC_HEALTH_PORT must differ from %s", portKey)
	}
	return nil
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", key, raw)
	}
	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDurationOrDefault accepts Go durations ("90s") or bare seconds ("90")
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsListOrDefault splits a separator-delimited variable, dropping empty items
func getEnvAsListOrDefault(key, sep string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(valueStr, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
