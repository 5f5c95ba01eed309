/**
 * Asynq dispatcher for file preprocessing
 *
 * Enqueues file:preprocess tasks in Redis and consumes them with an
 * in-process asynq server.
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/storage"
)

// TaskTypePreprocess is the asynq task type for preprocessing jobs
const TaskTypePreprocess = "file:preprocess"

// PreprocessPayload is the task payload
type PreprocessPayload struct {
	FileID     string    `json:"file_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// AsynqConfig holds asynq dispatcher configuration
type AsynqConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	MaxRetry          int
	ProcessingTimeout time.Duration
}

// AsynqDispatcher implements Dispatcher on asynq
type AsynqDispatcher struct {
	client  *asynq.Client
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler HandlerFunc
	config  AsynqConfig
	logger  *logging.Logger
}

// NewAsynqDispatcher creates the asynq client and server
func NewAsynqDispatcher(cfg AsynqConfig) (*AsynqDispatcher, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 2 * time.Minute
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("queue-asynq")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "payload", string(task.Payload()), "error", err)
			}),
			Logger: &asynqLogger{logger: logger},
		},
	)

	return &AsynqDispatcher{
		client: asynq.NewClient(redisOpt),
		server: server,
		mux:    asynq.NewServeMux(),
		config: cfg,
		logger: logger,
	}, nil
}

// retryDelay backs off exponentially: 5s, 10s, 20s, capped at 60s
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second || delay <= 0 {
		delay = 60 * time.Second
	}
	return delay
}

// Start registers handler and starts the asynq server
func (d *AsynqDispatcher) Start(handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	d.handler = handler
	d.mux.HandleFunc(TaskTypePreprocess, d.handlePreprocess)

	d.logger.Info("Starting queue consumer", "concurrency", d.config.Concurrency, "queue", d.config.QueueName)

	if err := d.server.Start(d.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Dispatch enqueues a preprocessing task for fileID
func (d *AsynqDispatcher) Dispatch(ctx context.Context, fileID string) error {
	payload, err := json.Marshal(PreprocessPayload{FileID: fileID, EnqueuedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TaskTypePreprocess, payload)
	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(d.config.QueueName),
		asynq.MaxRetry(d.config.MaxRetry),
		asynq.Timeout(d.config.ProcessingTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	d.logger.Debug("Enqueued preprocessing task", "file_id", fileID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// Stop shuts the server down and closes the client
func (d *AsynqDispatcher) Stop(ctx context.Context) error {
	d.logger.Info("Stopping queue consumer")

	d.server.Shutdown()

	if err := d.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}
	return nil
}

func (d *AsynqDispatcher) handlePreprocess(ctx context.Context, task *asynq.Task) error {
	var payload PreprocessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	err := d.handler(ctx, payload.FileID)
	if stderrors.Is(err, storage.ErrNotFound) {
		// Deleted before we got to it
		return fmt.Errorf("file %s: %v: %w", payload.FileID, err, asynq.SkipRetry)
	}
	return err
}

// GetStatistics returns dispatcher settings
func (d *AsynqDispatcher) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": d.config.Concurrency,
		"queue":       d.config.QueueName,
		"max_retry":   d.config.MaxRetry,
	}
}

// asynqLogger adapts the service logger to asynq.Logger
type asynqLogger struct {
	logger *logging.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
