package render

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/matzehuels/mdbook-diagrams/pkg/buildinfo"
	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
	"github.com/matzehuels/mdbook-diagrams/pkg/httputil"
	"github.com/matzehuels/mdbook-diagrams/pkg/observability"
)

const (
	// OptionHeaderPrefix prefixes diagram options sent as request headers.
	OptionHeaderPrefix = "Kroki-Diagram-Options-"

	maxResponseBytes = 32 << 20
	maxBodyExcerpt   = 512
)

// UserAgent is sent with every request.
var UserAgent = buildinfo.UserAgent()

// ClientOptions configures a [Client].
type ClientOptions struct {
	// BaseURL of the rendering service, e.g. https://kroki.io.
	BaseURL string
	// Timeout bounds each Render call, retries and backoff included.
	// Zero disables the bound.
	Timeout time.Duration
	// Retries is the number of retries for transient failures.
	Retries int
	// RateLimit caps requests per second; zero disables limiting.
	RateLimit float64
	// Logger receives debug logs from the HTTP client. May be nil.
	Logger *log.Logger

	// HTTPClient and the retry wait bounds are passed to httputil.
	HTTPClient   *http.Client
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client renders diagrams through a Kroki-compatible HTTP service.
//
// Each diagram is sent as POST {base}/{type}/{format} with the source as a
// text/plain body. Diagram options travel as Kroki-Diagram-Options-* headers.
type Client struct {
	base    string
	timeout time.Duration
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

// NewClient creates a Client.
func NewClient(opts ClientOptions) *Client {
	c := &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		http: httputil.NewClient(httputil.Options{
			Retries:      opts.Retries,
			RetryWaitMin: opts.RetryWaitMin,
			RetryWaitMax: opts.RetryWaitMax,
			Logger:       opts.Logger,
			HTTPClient:   opts.HTTPClient,
		}),
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

// BaseURL returns the service URL.
func (c *Client) BaseURL() string { return c.base }

// Render sends one diagram to the service and returns the image bytes.
func (c *Client) Render(ctx context.Context, req Request) ([]byte, error) {
	typ := diagram.Canonical(strings.ToLower(req.Type))
	if err := errors.ValidateDiagramType(typ); err != nil {
		return nil, err
	}
	if !req.Format.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported output format %q", req.Format)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() == nil {
				// The limiter refuses to wait past the deadline.
				return nil, &Error{Kind: KindTimeout, Type: req.Type, Message: "rate limit wait exceeds deadline", Err: err}
			}
			return nil, c.failure(ctx, req.Type, err)
		}
	}

	endpoint := c.base + "/" + url.PathEscape(typ) + "/" + req.Format.String()
	hreq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, []byte(req.Source))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "build request for %s", endpoint)
	}
	hreq.Header.Set("Content-Type", "text/plain; charset=utf-8")
	hreq.Header.Set("Accept", req.Format.MediaType())
	hreq.Header.Set("User-Agent", UserAgent)
	for name, value := range req.Options {
		hreq.Header.Set(OptionHeaderPrefix+name, value)
	}

	hooks := observability.HTTP()
	host, path := hreq.URL.Host, hreq.URL.Path
	hooks.OnRequest(ctx, http.MethodPost, host, path)
	start := time.Now()

	resp, err := c.http.Do(hreq)
	if err != nil {
		hooks.OnError(ctx, http.MethodPost, host, path, err)
		return nil, c.failure(ctx, req.Type, err)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, http.MethodPost, host, path, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, c.failure(ctx, req.Type, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:    KindService,
			Type:    req.Type,
			Status:  resp.StatusCode,
			Body:    excerpt(body),
			Message: "service rejected diagram",
		}
	}
	if len(body) > maxResponseBytes {
		return nil, &Error{Kind: KindService, Type: req.Type, Status: resp.StatusCode,
			Message: fmt.Sprintf("response exceeds %d bytes", maxResponseBytes)}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if got, ok := diagram.FormatFromMediaType(ct); !ok || got != req.Format {
			return nil, &Error{Kind: KindService, Type: req.Type, Status: resp.StatusCode,
				Message: fmt.Sprintf("unexpected content type %q (expected %s)", ct, req.Format.MediaType())}
		}
	}
	if len(body) == 0 {
		return nil, &Error{Kind: KindService, Type: req.Type, Status: resp.StatusCode, Message: "empty response"}
	}
	return body, nil
}

// failure classifies an error that prevented a complete response.
func (c *Client) failure(ctx context.Context, typ string, err error) *Error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Type: typ,
			Message: fmt.Sprintf("no response from %s within %s", c.base, c.timeout), Err: err}
	}
	var nerr net.Error
	if stderrors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Kind: KindTimeout, Type: typ, Message: "request to " + c.base + " timed out", Err: err}
	}
	return &Error{Kind: KindTransport, Type: typ, Message: "cannot reach " + c.base, Err: err}
}

// excerpt shortens an error body for messages, cutting on a rune boundary.
func excerpt(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) <= maxBodyExcerpt {
		return string(body)
	}
	cut := maxBodyExcerpt
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}

var _ Renderer = (*Client)(nil)
