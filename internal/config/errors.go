package config

import "errors"

var (
	// ErrNoSeedURL is returned when the seed URL is empty or has no host
	ErrNoSeedURL = errors.New("no seed URL provided")
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidPollInterval is returned when poll interval is not greater than 0
	ErrInvalidPollInterval = errors.New("poll_interval must be greater than 0")
	// ErrInvalidScheme is returned for a scheme other than http or https
	ErrInvalidScheme = errors.New("scheme must be http or https")
	// ErrInvalidMaxBodySize is returned when max body size is not greater than 0
	ErrInvalidMaxBodySize = errors.New("max_body_size must be greater than 0")
	// ErrInvalidRequestRate is returned when the request rate is negative
	ErrInvalidRequestRate = errors.New("max_requests_per_second cannot be negative")
)
