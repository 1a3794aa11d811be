package service

import (
	"errors"
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

// Service errors. Callers branch with errors.Is.
var (
	ErrNotStarted   = fmt.Errorf("service not started: %w", model.ErrTransientStorage)
	ErrInvalidJob   = errors.New("invalid job")
	ErrQueueFull    = fmt.Errorf("job queue full: %w", model.ErrTransientStorage)
	ErrNoDraft      = fmt.Errorf("no open draft: %w", model.ErrNotFound)
	ErrInvalidInput = errors.New("invalid input")
)
