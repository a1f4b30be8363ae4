package httpclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/ratelimit"
)

const (
	defaultRetryMax     = 3
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
)

type Options struct {
	Timeout  time.Duration
	RetryMax int
	// Limiter throttles every attempt, retries included. Nil means unlimited.
	Limiter ratelimit.Limiter
}

// NewRetryableHTTPClient returns a standard http.Client that retries connection
// errors and 5xx responses with backoff.
func NewRetryableHTTPClient(opts Options, log *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = defaultRetryMax
	if opts.RetryMax > 0 {
		rc.RetryMax = opts.RetryMax
	}
	rc.RetryWaitMin = defaultRetryWaitMin
	rc.RetryWaitMax = defaultRetryWaitMax
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = nil
	if log != nil {
		rc.Logger = log.With(slog.String("item", "HTTPClient"))
	}

	if opts.Limiter != nil {
		rc.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, _ int) {
			opts.Limiter.Take()
		}
	}

	return rc.StandardClient()
}
