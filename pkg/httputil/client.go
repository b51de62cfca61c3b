package httputil

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
)

// Default retry settings.
const (
	DefaultRetryWaitMin = 200 * time.Millisecond
	DefaultRetryWaitMax = 2 * time.Second
)

// Options configures [NewClient].
type Options struct {
	// Retries is the number of retries after the first attempt.
	Retries int
	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	// Zero values select the defaults.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Logger receives request and retry logs at debug level. Nil disables
	// client logging.
	Logger *log.Logger
	// HTTPClient is the underlying client. Nil selects a pooled client.
	HTTPClient *http.Client
}

// NewClient returns a retrying HTTP client.
func NewClient(opts Options) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = max(opts.Retries, 0)
	c.RetryWaitMin = opts.RetryWaitMin
	if c.RetryWaitMin <= 0 {
		c.RetryWaitMin = DefaultRetryWaitMin
	}
	c.RetryWaitMax = opts.RetryWaitMax
	if c.RetryWaitMax <= 0 {
		c.RetryWaitMax = DefaultRetryWaitMax
	}
	if c.RetryWaitMax < c.RetryWaitMin {
		c.RetryWaitMax = c.RetryWaitMin
	}
	if opts.HTTPClient != nil {
		c.HTTPClient = opts.HTTPClient
	}

	c.CheckRetry = retryablehttp.DefaultRetryPolicy
	c.Backoff = retryablehttp.DefaultBackoff
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if opts.Logger != nil {
		c.Logger = NewLeveledLogger(opts.Logger)
	} else {
		c.Logger = nil
	}
	return c
}
