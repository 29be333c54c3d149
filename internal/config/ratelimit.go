package config

import "time"

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerSecond is the number of requests allowed per second
	RequestsPerSecond float64
	// Burst is the number of requests allowed at once
	Burst int
	// MaxRetries is the maximum number of retries before giving up
	MaxRetries int
	// BaseDelay is the initial delay duration for backoff
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration for backoff
	MaxDelay time.Duration
}

var (
	// ManagementRateLimitConfig applies to Azure Resource Manager calls (metrics, inventory).
	// ARM allows roughly 12000 reads per hour per principal.
	ManagementRateLimitConfig = RateLimitConfig{
		RequestsPerSecond: 3.0,
		Burst:             6,
		MaxRetries:        5,
		BaseDelay:         time.Second,
		MaxDelay:          time.Minute,
	}

	// PricingRateLimitConfig applies to the public retail prices API
	PricingRateLimitConfig = RateLimitConfig{
		RequestsPerSecond: 5.0,
		Burst:             5,
		MaxRetries:        5,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
	}
)
