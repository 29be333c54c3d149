package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"disksift/internal/config"
	"disksift/internal/logging"
)

var (
	registryMu sync.Mutex
	registry   = make(map[string]*Limiter)
)

// Limiter throttles calls to one API and retries throttled calls with exponential backoff
type Limiter struct {
	name    string
	limiter *rate.Limiter
	cfg     config.RateLimitConfig
}

// New creates a limiter from cfg
func New(name string, cfg config.RateLimitConfig) *Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		cfg:     cfg,
	}
}

// Get returns the shared limiter for name, creating it from cfg on first use
func Get(name string, cfg config.RateLimitConfig) *Limiter {
	registryMu.Lock()
	defer registryMu.Unlock()

	if l, ok := registry[name]; ok {
		return l
	}
	l := New(name, cfg)
	registry[name] = l
	return l
}

// Wait blocks until the limiter allows one more request
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter %s interrupted: %w", l.name, err)
	}
	return nil
}

// IsRetryable classifies throttling and transient network errors.
// Errors carrying an HTTP status are classified by that status alone.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}
	if code, ok := statusCode(err); ok {
		return RetryableStatus(code)
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"throttl", "rate exceeded", "temporarily unavailable", "connection reset"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// RetryableStatus reports whether an HTTP status is worth retrying
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func statusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		return re.StatusCode, true
	}
	return 0, false
}

// StatusError is a non-success HTTP response of a REST API
type StatusError struct {
	API        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s returned %s", e.API, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// RetryableError marks an error as safe to retry
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Execute waits for the limiter and runs operation, retrying retryable failures with backoff
func (l *Limiter) Execute(ctx context.Context, apiName string, operation func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.cfg.BaseDelay
	b.MaxInterval = l.cfg.MaxDelay
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = b
	if l.cfg.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(b, uint64(l.cfg.MaxRetries))
	}
	policy = backoff.WithContext(policy, ctx)

	attempt := 0
	op := func() error {
		attempt++
		if err := l.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := operation(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logging.Debug("Throttled, retrying operation", map[string]interface{}{
			"limiter":  l.name,
			"api":      apiName,
			"attempt":  attempt,
			"delay_ms": wait.Milliseconds(),
			"error":    err.Error(),
		})
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("%s: %w", apiName, err)
	}
	return nil
}
