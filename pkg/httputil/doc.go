// Package httputil builds the HTTP client used to talk to the diagram
// rendering service.
//
// # Overview
//
//   - [NewClient]: a go-retryablehttp client with the preprocessor's retry
//     policy
//   - [LeveledLogger]: bridges the client's request and retry logs into a
//     charmbracelet logger
//
// # Retry
//
// Transient failures are retried with exponential backoff:
//
//   - connection errors
//   - 5xx server errors (except 501)
//   - 429 rate limit responses, honouring Retry-After
//
// Retries stop as soon as the request context is done, so a per-call
// deadline bounds the total time spent including backoff. After the last
// attempt the final response is returned unchanged, which lets callers
// inspect the status and body of a service error.
//
//	client := httputil.NewClient(httputil.Options{Retries: 2, Logger: logger})
//	req, _ := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
//	resp, err := client.Do(req)
package httputil
