package azure

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"disksift/internal/logging"
)

// retryLogger routes retryablehttp's leveled logs into the application logger
type retryLogger struct{}

func kvMap(keysAndValues []interface{}) map[string]interface{} {
	if len(keysAndValues) == 0 {
		return nil
	}
	data := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			data[k] = keysAndValues[i+1]
		}
	}
	return data
}

func (retryLogger) Error(msg string, keysAndValues ...interface{}) {
	logging.Warn(msg, kvMap(keysAndValues))
}

func (retryLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug(msg, kvMap(keysAndValues))
}

func (retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	logging.Debug(msg, kvMap(keysAndValues))
}

func (retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	logging.Warn(msg, kvMap(keysAndValues))
}

// NewHTTPClient returns a retrying HTTP client for the Azure REST APIs.
// 429 and 5xx responses are retried up to retryMax times with exponential backoff.
func NewHTTPClient(retryMax int) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 30 * time.Second
	client.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	client.Logger = retryLogger{}
	// hand the last response to the caller so its status decides further retries
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}
