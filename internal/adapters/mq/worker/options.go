// Package worker runs queued batch jobs on a small pool of goroutines.
package worker

import (
	"time"

	"github.com/okian/peloton/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRetry retries jobs failing with a transient storage error up to
// attempts times, waiting backoff, then twice that, between tries.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(w *InMemoryWorker) {
		if attempts >= 0 {
			w.retries = attempts
		}
		if backoff > 0 {
			w.backoff = backoff
		}
	}
}
