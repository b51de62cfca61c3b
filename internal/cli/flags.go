package cli

import (
	"github.com/spf13/pflag"

	"github.com/matzehuels/mdbook-diagrams/pkg/config"
	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
)

// configFlags are command-line overrides of configuration keys. A flag only
// overrides its key when it was set explicitly.
type configFlags struct {
	set *pflag.FlagSet

	path           string
	outputFormat   string
	krokiURL       string
	languagePrefix string
	timeoutSecs    float64
	filesPath      string
	onError        string
	concurrency    int
	retries        int
	rateLimit      float64
	localRenderers []string
	inlineStyle    string
	linkRoot       string
	redisURL       string
}

func (f *configFlags) register(fs *pflag.FlagSet) {
	f.set = fs
	fs.StringVarP(&f.path, "config", "c", "", "config file (book.toml, .toml or .yaml); defaults to ./book.toml when present")
	fs.StringVar(&f.outputFormat, "format", "", "output format: svg or png")
	fs.StringVar(&f.krokiURL, "kroki-url", "", "rendering service URL")
	fs.StringVar(&f.languagePrefix, "prefix", "", "language prefix of diagram fences, e.g. diagram-")
	fs.Float64Var(&f.timeoutSecs, "timeout", 0, "per-diagram timeout in seconds")
	fs.StringVar(&f.filesPath, "files-path", "", "artifact directory")
	fs.StringVar(&f.onError, "on-error", "", "failure policy: fail or keep")
	fs.IntVar(&f.concurrency, "concurrency", 0, "diagrams rendered concurrently per chapter")
	fs.IntVar(&f.retries, "retries", 0, "retries for transient service failures")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "maximum service requests per second (0 = unlimited)")
	fs.StringSliceVar(&f.localRenderers, "local", nil, "diagram types rendered in-process (graphviz, d2)")
	fs.StringVar(&f.inlineStyle, "inline-style", "", "inline markup: image or figure")
	fs.StringVar(&f.linkRoot, "link-root", "", "make file references relative to this directory")
	fs.StringVar(&f.redisURL, "redis-url", "", "shared redis cache, e.g. redis://localhost:6379/0")
}

func (f *configFlags) changed(name string) bool {
	return f.set != nil && f.set.Changed(name)
}

// apply copies explicitly set flags onto cfg.
func (f *configFlags) apply(cfg *config.Config) {
	if f.changed("format") {
		cfg.OutputFormat = diagram.Format(f.outputFormat)
	}
	if f.changed("kroki-url") {
		cfg.KrokiURL = f.krokiURL
	}
	if f.changed("prefix") {
		cfg.LanguagePrefix = f.languagePrefix
	}
	if f.changed("timeout") {
		cfg.TimeoutSecs = f.timeoutSecs
	}
	if f.changed("files-path") {
		cfg.FilesPath = f.filesPath
	}
	if f.changed("on-error") {
		cfg.OnError = config.Policy(f.onError)
	}
	if f.changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if f.changed("retries") {
		cfg.Retries = f.retries
	}
	if f.changed("rate-limit") {
		cfg.RateLimit = f.rateLimit
	}
	if f.changed("local") {
		cfg.LocalRenderers = f.localRenderers
	}
	if f.changed("inline-style") {
		cfg.InlineStyle = config.InlineStyle(f.inlineStyle)
	}
	if f.changed("link-root") {
		cfg.LinkRoot = f.linkRoot
	}
	if f.changed("redis-url") {
		cfg.RedisURL = f.redisURL
	}
}

// load reads the configuration for standalone commands: the --config file,
// else ./book.toml, else the defaults; then applies flag overrides and
// validates.
func (f *configFlags) load() (config.Config, error) {
	cfg := config.Default()
	path := f.path
	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	return f.finish(cfg)
}

// finish applies flag overrides to cfg and validates it.
func (f *configFlags) finish(cfg config.Config) (config.Config, error) {
	f.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
