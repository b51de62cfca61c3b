package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mdbook-diagrams/pkg/cache"
	"github.com/matzehuels/mdbook-diagrams/pkg/config"
	"github.com/matzehuels/mdbook-diagrams/pkg/observability"
	"github.com/matzehuels/mdbook-diagrams/pkg/render"
	mderrors "github.com/matzehuels/mdbook-diagrams/pkg/errors"
)

func newTestProxy(t *testing.T, upstream string) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.KrokiURL = upstream
	cfg.FilesPath = t.TempDir()
	cfg.Retries = 0
	require.NoError(t, cfg.Validate())

	logger := log.New(io.Discard)
	resolver, err := newProxyResolver(&cfg, cache.NewNullCache(), logger)
	require.NoError(t, err)

	memory := cache.NewMemoryCache(0)
	t.Cleanup(func() { memory.Close() })

	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg).Register()
	t.Cleanup(observability.Reset)

	srv := httptest.NewServer(newProxyHandler(resolver, memory, reg, logger))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestProxyRendersAndCaches(t *testing.T) {
	upstream, calls := fakeKroki(t)
	proxy := newTestProxy(t, upstream.URL)

	resp, body := post(t, proxy.URL+"/mermaid/svg", "graph TD", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Equal(t, "rendered", resp.Header.Get("X-Cache"))
	assert.Equal(t, "<svg>graph TD</svg>", body)

	resp, body = post(t, proxy.URL+"/mermaid/svg", "graph TD", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "memory", resp.Header.Get("X-Cache"))
	assert.Equal(t, "<svg>graph TD</svg>", body)
	assert.Equal(t, int32(1), calls.Load())

	// Options are part of the cache key.
	resp, _ = post(t, proxy.URL+"/mermaid/svg", "graph TD", http.Header{"Kroki-Diagram-Options-Theme": {"dark"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rendered", resp.Header.Get("X-Cache"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestProxyErrors(t *testing.T) {
	upstream, _ := fakeKroki(t)
	proxy := newTestProxy(t, upstream.URL)

	resp, body := post(t, proxy.URL+"/mermaid/svg", "bad", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "syntax error")

	resp, _ = post(t, proxy.URL+"/mermaid/gif", "graph TD", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, proxy.URL+"/mer%20maid/svg", "graph TD", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProxyHealthAndMetrics(t *testing.T) {
	upstream, _ := fakeKroki(t)
	proxy := newTestProxy(t, upstream.URL)

	post(t, proxy.URL+"/graphviz/svg", "digraph {}", nil)

	resp, err := http.Get(proxy.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(proxy.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mdbook_diagrams_render_requests_total")
	assert.Contains(t, string(data), "mdbook_diagrams_cache_lookups_total")
}

func TestOptionsFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Kroki-Diagram-Options-Theme", "dark")
	h.Set("Kroki-Diagram-Options-Html-Labels", "false")
	h.Set("Content-Type", "text/plain")

	assert.Equal(t, map[string]string{"theme": "dark", "html-labels": "false"}, optionsFromHeader(h))
	assert.Nil(t, optionsFromHeader(http.Header{"Accept": {"image/svg+xml"}}))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"timeout", &render.Error{Kind: render.KindTimeout}, http.StatusGatewayTimeout},
		{"transport", &render.Error{Kind: render.KindTransport}, http.StatusBadGateway},
		{"diagram error", &render.Error{Kind: render.KindService, Status: 400}, http.StatusBadRequest},
		{"upstream down", &render.Error{Kind: render.KindService, Status: 503}, http.StatusBadGateway},
		{"bad type", mderrors.New(mderrors.ErrCodeInvalidInput, "bad type"), http.StatusBadRequest},
		{"canceled", context.Canceled, 499},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
