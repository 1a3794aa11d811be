package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps provider and unmarshal failures in Load.
	ErrLoadConfig = errors.New("load config failed")
)
