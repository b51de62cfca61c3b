package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mdbook_diagrams"

// Metrics implements every hook interface on top of Prometheus collectors.
type Metrics struct {
	chapters        *prometheus.CounterVec
	chapterDuration prometheus.Histogram
	renders         *prometheus.CounterVec
	renderDuration  *prometheus.HistogramVec
	renderBytes     *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheWrites     *prometheus.CounterVec
	httpResponses   *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpErrors      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		chapters: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "chapters_total",
				Help:      "Total number of chapters processed, by outcome.",
			},
			[]string{"outcome"},
		),
		chapterDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "chapter_duration_seconds",
				Help:      "Time spent processing one chapter.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		renders: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "requests_total",
				Help:      "Total number of renderer invocations, by diagram type, format and outcome.",
			},
			[]string{"type", "format", "outcome"},
		),
		renderDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "duration_seconds",
				Help:      "Duration of renderer invocations.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"type", "format"},
		),
		renderBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "bytes_total",
				Help:      "Total number of artifact bytes produced by renderers.",
			},
			[]string{"format"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Total number of artifact lookups, by tier and result.",
			},
			[]string{"tier", "result"},
		),
		cacheWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "writes_total",
				Help:      "Total number of artifact writes, by tier.",
			},
			[]string{"tier"},
		),
		httpResponses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "responses_total",
				Help:      "Total number of responses from the rendering service, by status code.",
			},
			[]string{"host", "code"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of requests to the rendering service, retries included.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"host"},
		),
		httpErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total number of requests to the rendering service that got no response.",
			},
			[]string{"host"},
		),
	}
}

// Register installs m as the pipeline, render, cache and HTTP hooks.
func (m *Metrics) Register() {
	SetPipelineHooks(m)
	SetRenderHooks(m)
	SetCacheHooks(m)
	SetHTTPHooks(m)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) OnChapterStart(context.Context, string, int) {}

func (m *Metrics) OnChapterComplete(_ context.Context, _ string, _, _ int, d time.Duration, err error) {
	m.chapters.WithLabelValues(outcome(err)).Inc()
	m.chapterDuration.Observe(d.Seconds())
}

func (m *Metrics) OnRenderStart(context.Context, string, string) {}

func (m *Metrics) OnRenderComplete(_ context.Context, diagramType, format string, size int, d time.Duration, err error) {
	m.renders.WithLabelValues(diagramType, format, outcome(err)).Inc()
	m.renderDuration.WithLabelValues(diagramType, format).Observe(d.Seconds())
	if err == nil {
		m.renderBytes.WithLabelValues(format).Add(float64(size))
	}
}

func (m *Metrics) OnCacheHit(_ context.Context, tier string) {
	m.cacheLookups.WithLabelValues(tier, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, tier string) {
	m.cacheLookups.WithLabelValues(tier, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, tier string, _ int) {
	m.cacheWrites.WithLabelValues(tier).Inc()
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, statusCode int, d time.Duration) {
	m.httpResponses.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.httpErrors.WithLabelValues(host).Inc()
}

var (
	_ PipelineHooks = (*Metrics)(nil)
	_ RenderHooks   = (*Metrics)(nil)
	_ CacheHooks    = (*Metrics)(nil)
	_ HTTPHooks     = (*Metrics)(nil)
)
