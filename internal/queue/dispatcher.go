/**
 * Background preprocessing dispatch
 *
 * The upload handler only records the file; preprocessing happens later
 * through a Dispatcher. Inline runs each job on its own goroutine, asynq
 * persists jobs in Redis and retries them.
 */

package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adverant/nexus/doctranslate/internal/logging"
)

// HandlerFunc preprocesses one file
type HandlerFunc func(ctx context.Context, fileID string) error

// Dispatcher schedules preprocessing of uploaded files
type Dispatcher interface {
	// Start begins consuming jobs with handler
	Start(handler HandlerFunc) error
	// Dispatch schedules fileID for preprocessing
	Dispatch(ctx context.Context, fileID string) error
	// Stop waits for in-flight jobs and releases resources
	Stop(ctx context.Context) error
}

// InlineDispatcher runs each job on a goroutine in this process
type InlineDispatcher struct {
	timeout time.Duration
	logger  *logging.Logger

	mu      sync.RWMutex
	handler HandlerFunc
	stopped bool
	wg      sync.WaitGroup
}

// NewInlineDispatcher creates a dispatcher whose jobs each get timeout
func NewInlineDispatcher(timeout time.Duration) *InlineDispatcher {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &InlineDispatcher{
		timeout: timeout,
		logger:  logging.NewLogger("queue-inline"),
	}
}

// Start registers handler
func (d *InlineDispatcher) Start(handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
	return nil
}

// Dispatch runs the handler for fileID in the background. The job is
// detached from ctx so it outlives the request that scheduled it.
func (d *InlineDispatcher) Dispatch(ctx context.Context, fileID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.handler == nil {
		return fmt.Errorf("dispatcher not started")
	}
	if d.stopped {
		return fmt.Errorf("dispatcher stopped")
	}

	handler := d.handler
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		jobCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		startTime := time.Now()
		if err := handler(jobCtx, fileID); err != nil {
			d.logger.Error("Preprocessing failed", "file_id", fileID, "duration", time.Since(startTime), "error", err)
			return
		}
		d.logger.Debug("Preprocessing completed", "file_id", fileID, "duration", time.Since(startTime))
	}()

	return nil
}

// Stop rejects new jobs and waits for running ones or ctx
func (d *InlineDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for preprocessing jobs: %w", ctx.Err())
	}
}
