package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthProber is an upstream that can report its own health
type HealthProber interface {
	Name() string
	URL() string
	HealthCheck(ctx context.Context) error
}

// ServiceStatus is one entry of the status report
type ServiceStatus struct {
	Status         string `json:"status"`
	URL            string `json:"url"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

// Status values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// CheckServices probes every upstream concurrently and waits for all of them.
// A failing probe is reported in its own entry and never aborts the others.
func CheckServices(ctx context.Context, timeout time.Duration, probers ...HealthProber) map[string]ServiceStatus {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make([]ServiceStatus, len(probers))

	var g errgroup.Group
	for i, p := range probers {
		i, p := i, p
		g.Go(func() error {
			start := time.Now()
			err := p.HealthCheck(ctx)

			status := ServiceStatus{
				Status:         StatusOK,
				URL:            p.URL(),
				ResponseTimeMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				status.Status = StatusError
				status.Error = err.Error()
			}
			results[i] = status
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]ServiceStatus, len(probers))
	for i, p := range probers {
		out[p.Name()] = results[i]
	}
	return out
}
