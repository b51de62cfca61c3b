package pipeline

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mdbook-diagrams/pkg/cache"
	"github.com/matzehuels/mdbook-diagrams/pkg/config"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
	"github.com/matzehuels/mdbook-diagrams/pkg/render"
	"github.com/matzehuels/mdbook-diagrams/pkg/render/local"
	"github.com/matzehuels/mdbook-diagrams/pkg/resolve"
	"github.com/matzehuels/mdbook-diagrams/pkg/substitute"
)

// SharedKeyPrefix namespaces artifacts in the shared redis tier.
const SharedKeyPrefix = "mdbook-diagrams:"

// New builds a Runner from a validated configuration for the named mdbook
// renderer. The caller must Close the runner.
func New(ctx context.Context, cfg *config.Config, renderer string, logger *log.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	store, err := cache.NewFileStore(cfg.FilesPath, cfg.FilenamePrefix)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheIO, err, "artifact directory %s", cfg.FilesPath)
	}
	r, err := NewRenderer(cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := OptionsFromConfig(cfg, renderer, logger)
	resolver := resolve.New(store, NewSharedCache(ctx, cfg, logger), r, logger, resolve.Options{
		Format:    cfg.OutputFormat,
		Inline:    opts.Mode == substitute.Inline,
		SharedTTL: cfg.RedisTTL(),
	})

	logger.Debug("pipeline ready",
		"renderer", renderer,
		"mode", opts.Mode,
		"format", cfg.OutputFormat,
		"service", cfg.KrokiURL,
		"files", store.Dir())
	return NewRunner(resolver, opts)
}

// NewRenderer returns the remote client, fronted by the configured local
// renderers.
func NewRenderer(cfg *config.Config, logger *log.Logger) (render.Renderer, error) {
	client := render.NewClient(render.ClientOptions{
		BaseURL:   cfg.KrokiURL,
		Timeout:   cfg.Timeout(),
		Retries:   cfg.Retries,
		RateLimit: cfg.RateLimit,
		Logger:    logger,
	})
	if len(cfg.LocalRenderers) == 0 {
		return client, nil
	}
	chain := render.NewChain(client)
	chain.Timeout = cfg.Timeout()
	if err := local.Register(chain, cfg.LocalRenderers); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "local_renderers")
	}
	return chain, nil
}

// NewSharedCache connects to the configured redis tier. The tier is
// optional: when redis is not configured or unreachable, a NullCache is
// returned and a warning logged.
func NewSharedCache(ctx context.Context, cfg *config.Config, logger *log.Logger) cache.Cache {
	if cfg.RedisURL == "" {
		return cache.NewNullCache()
	}
	rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("shared cache disabled", "err", err)
		return cache.NewNullCache()
	}
	return cache.NewScoped(rc, SharedKeyPrefix)
}
