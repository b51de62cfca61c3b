package cli

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mdbook-diagrams/pkg/cache"
	"github.com/matzehuels/mdbook-diagrams/pkg/config"
	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
	"github.com/matzehuels/mdbook-diagrams/pkg/observability"
	"github.com/matzehuels/mdbook-diagrams/pkg/pipeline"
	"github.com/matzehuels/mdbook-diagrams/pkg/render"
	"github.com/matzehuels/mdbook-diagrams/pkg/resolve"
)

const (
	defaultServeAddr = "127.0.0.1:8000"
	maxSourceBytes   = 1 << 20
	shutdownTimeout  = 10 * time.Second
)

// serveFlags holds flags for the serve command.
type serveFlags struct {
	addr        string
	memoryItems uint64
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	flags := serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a caching Kroki-compatible proxy",
		Long: `Run an HTTP server that speaks the Kroki POST API and caches every
rendered diagram.

Point kroki_url of one or more books at the proxy to share rendered diagrams
between them. Requests are answered from memory, then from the artifact
directory, then from redis (when redis_url is set), and only then forwarded
to the upstream service configured by kroki_url.

Endpoints:
  POST /{type}/{format}   render a diagram (body: diagram source)
  GET  /healthz           liveness probe
  GET  /metrics           Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", defaultServeAddr, "listen address")
	cmd.Flags().Uint64Var(&flags.memoryItems, "memory-items", cache.DefaultMemoryCapacity, "diagrams kept in memory")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, flags serveFlags) error {
	logger := loggerFromContext(ctx)

	cfg, err := c.flags.load()
	if err != nil {
		return err
	}

	memory := cache.NewMemoryCache(flags.memoryItems)
	defer memory.Close()
	shared := pipeline.NewSharedCache(ctx, &cfg, logger)
	defer shared.Close()

	resolver, err := newProxyResolver(&cfg, shared, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observability.NewMetrics(reg).Register()
	defer observability.Reset()

	srv := &http.Server{
		Addr:              flags.addr,
		Handler:           newProxyHandler(resolver, memory, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("proxy listening",
		"addr", flags.addr,
		"upstream", cfg.KrokiURL,
		"files", cfg.FilesPath)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// newProxyResolver builds the resolver behind the proxy. The memory tier is
// consulted by the handler before the resolver; the resolver's own tiers are
// the artifact directory and the shared redis tier.
func newProxyResolver(cfg *config.Config, shared cache.Cache, logger *log.Logger) (*resolve.Resolver, error) {
	store, err := cache.NewFileStore(cfg.FilesPath, cfg.FilenamePrefix)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheIO, err, "artifact directory %s", cfg.FilesPath)
	}
	renderer, err := pipeline.NewRenderer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return resolve.New(store, shared, renderer, logger, resolve.Options{
		Format: cfg.OutputFormat,
		// Proxy clients receive bytes, so an unwritable directory is not fatal.
		Inline:    true,
		SharedTTL: cfg.RedisTTL(),
	}), nil
}

// proxy serves the Kroki POST API from a resolver.
type proxy struct {
	resolver *resolve.Resolver
	memory   cache.Cache
	logger   *log.Logger
}

// newProxyHandler returns the proxy's router.
func newProxyHandler(resolver *resolve.Resolver, memory cache.Cache, gatherer prometheus.Gatherer, logger *log.Logger) http.Handler {
	p := &proxy{resolver: resolver, memory: memory, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(p.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "ok\n")
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Post("/{type}/{format}", p.render)

	return r
}

func (p *proxy) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		p.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"id", middleware.GetReqID(r.Context()))
	})
}

func (p *proxy) render(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	typ := strings.ToLower(chi.URLParam(r, "type"))
	format, err := diagram.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	source, err := io.ReadAll(io.LimitReader(r.Body, maxSourceBytes+1))
	if err != nil {
		http.Error(w, "cannot read request body", http.StatusBadRequest)
		return
	}
	if len(source) > maxSourceBytes {
		http.Error(w, "diagram source too large", http.StatusRequestEntityTooLarge)
		return
	}

	req := render.Request{Type: typ, Source: string(source), Format: format, Options: optionsFromHeader(r.Header)}
	key := cache.NewKey(req.Source, req.Type, req.Format, req.Options).String()

	if data, hit, _ := p.memory.Get(ctx, key); hit {
		observability.Cache().OnCacheHit(ctx, "memory")
		writeImage(w, format, data, "memory")
		return
	}
	observability.Cache().OnCacheMiss(ctx, "memory")

	art, err := p.resolver.ResolveRequest(ctx, req)
	if err != nil {
		p.logger.Warn("render failed", "type", typ, "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if err := p.memory.Set(ctx, key, art.Data, 0); err == nil {
		observability.Cache().OnCacheSet(ctx, "memory", len(art.Data))
	}
	writeImage(w, format, art.Data, art.Origin.String())
}

func writeImage(w http.ResponseWriter, format diagram.Format, data []byte, origin string) {
	w.Header().Set("Content-Type", format.MediaType())
	w.Header().Set("X-Cache", origin)
	w.Write(data)
}

// optionsFromHeader collects Kroki-Diagram-Options-* headers. Option names
// are lower-cased.
func optionsFromHeader(h http.Header) map[string]string {
	var opts map[string]string
	for name, values := range h {
		opt, ok := cutPrefixFold(name, render.OptionHeaderPrefix)
		if !ok || opt == "" || len(values) == 0 {
			continue
		}
		if opts == nil {
			opts = make(map[string]string)
		}
		opts[strings.ToLower(opt)] = values[0]
	}
	return opts
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// statusFor maps a resolve error to an HTTP status. Diagram errors reported
// by the upstream service with a 4xx status keep that status.
func statusFor(err error) int {
	if re, ok := render.AsError(err); ok {
		switch {
		case re.Kind == render.KindTimeout:
			return http.StatusGatewayTimeout
		case re.Kind == render.KindService && re.Status >= 400 && re.Status < 500:
			return re.Status
		default:
			return http.StatusBadGateway
		}
	}
	switch {
	case errors.Is(err, errors.ErrCodeInvalidInput), errors.Is(err, errors.ErrCodeInvalidFormat):
		return http.StatusBadRequest
	case stderrors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}
