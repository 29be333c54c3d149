package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disksift/internal/config"
)

func fastConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		RequestsPerSecond: 1000,
		Burst:             10,
		MaxRetries:        3,
		BaseDelay:         time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
	}
}

func TestExecuteRetriesThrottledCalls(t *testing.T) {
	l := New("test", fastConfig())

	calls := 0
	err := l.Execute(context.Background(), "ListDisks", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{API: "disks API", StatusCode: http.StatusTooManyRequests, Status: "429 Too Many Requests"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteStopsOnPermanentError(t *testing.T) {
	l := New("test", fastConfig())

	calls := 0
	err := l.Execute(context.Background(), "ListDisks", func(ctx context.Context) error {
		calls++
		return errors.New("authorization failed")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "ListDisks")
}

func TestExecuteGivesUpAfterMaxRetries(t *testing.T) {
	l := New("test", fastConfig())

	calls := 0
	err := l.Execute(context.Background(), "GetMetrics", func(ctx context.Context) error {
		calls++
		return &RetryableError{Err: errors.New("server busy")}
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{"throttled message", errors.New("Request was throttled"), true},
		{"marked retryable", fmt.Errorf("x: %w", &RetryableError{Err: errors.New("503")}), true},
		{"plain error", errors.New("not found"), false},
		{"bare 429 in message", errors.New("invalid sku 429"), false},
		{"status 429", &StatusError{API: "prices", StatusCode: http.StatusTooManyRequests, Status: "429 Too Many Requests"}, true},
		{"status 503 wrapped", fmt.Errorf("page: %w", &StatusError{StatusCode: http.StatusServiceUnavailable}), true},
		{"status 400 with 429 in body", &StatusError{StatusCode: http.StatusBadRequest, Status: "400 Bad Request", Body: `{"message":"429 throttled"}`}, false},
		{"status 403", &StatusError{StatusCode: http.StatusForbidden, Status: "403 Forbidden"}, false},
		{"sdk 503", &azcore.ResponseError{StatusCode: http.StatusServiceUnavailable, ErrorCode: "ServerBusy"}, true},
		{"sdk 404", &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "ResourceNotFound"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestExecuteDoesNotRetryClientErrors(t *testing.T) {
	l := New("test", fastConfig())

	calls := 0
	err := l.Execute(context.Background(), "RetailPrices", func(ctx context.Context) error {
		calls++
		return &StatusError{API: "retail prices API", StatusCode: http.StatusBadRequest, Status: "400 Bad Request", Body: "code 429"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestGetReturnsSharedLimiter(t *testing.T) {
	a := Get("shared-test", fastConfig())
	b := Get("shared-test", config.PricingRateLimitConfig)
	assert.Same(t, a, b)
}
