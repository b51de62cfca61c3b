package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnChapterStart(ctx, "Intro", 3)
	p.OnChapterComplete(ctx, "Intro", 2, 1, time.Second, nil)

	r := NoopRenderHooks{}
	r.OnRenderStart(ctx, "mermaid", "svg")
	r.OnRenderComplete(ctx, "mermaid", "svg", 100, time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "file")
	c.OnCacheMiss(ctx, "shared")
	c.OnCacheSet(ctx, "file", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "POST", "kroki.io", "/mermaid/svg")
	h.OnResponse(ctx, "POST", "kroki.io", "/mermaid/svg", 200, time.Second)
	h.OnError(ctx, "POST", "kroki.io", "/mermaid/svg", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	defer Reset()

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Render().(NoopRenderHooks); !ok {
		t.Error("Render() should return NoopRenderHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	m := NewMetrics(prometheus.NewRegistry())
	m.Register()
	if Render() != RenderHooks(m) || Cache() != CacheHooks(m) {
		t.Error("Register should install the metrics as hooks")
	}

	// nil does not replace registered hooks
	SetRenderHooks(nil)
	if Render() != RenderHooks(m) {
		t.Error("SetRenderHooks(nil) should be ignored")
	}

	Reset()
	if _, ok := Render().(NoopRenderHooks); !ok {
		t.Error("Reset should restore NoopRenderHooks")
	}
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.OnRenderComplete(ctx, "mermaid", "svg", 512, 20*time.Millisecond, nil)
	m.OnRenderComplete(ctx, "mermaid", "svg", 0, time.Second, errors.New("boom"))
	m.OnCacheHit(ctx, "file")
	m.OnCacheHit(ctx, "file")
	m.OnCacheMiss(ctx, "shared")
	m.OnCacheSet(ctx, "file", 512)
	m.OnResponse(ctx, "POST", "kroki.io", "/mermaid/svg", 200, time.Millisecond)
	m.OnError(ctx, "POST", "kroki.io", "/mermaid/svg", errors.New("dial"))
	m.OnChapterComplete(ctx, "Intro", 1, 1, time.Millisecond, nil)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"render ok", testutil.ToFloat64(m.renders.WithLabelValues("mermaid", "svg", "ok")), 1},
		{"render error", testutil.ToFloat64(m.renders.WithLabelValues("mermaid", "svg", "error")), 1},
		{"render bytes", testutil.ToFloat64(m.renderBytes.WithLabelValues("svg")), 512},
		{"file hits", testutil.ToFloat64(m.cacheLookups.WithLabelValues("file", "hit")), 2},
		{"shared misses", testutil.ToFloat64(m.cacheLookups.WithLabelValues("shared", "miss")), 1},
		{"file writes", testutil.ToFloat64(m.cacheWrites.WithLabelValues("file")), 1},
		{"http 200", testutil.ToFloat64(m.httpResponses.WithLabelValues("kroki.io", "200")), 1},
		{"http errors", testutil.ToFloat64(m.httpErrors.WithLabelValues("kroki.io")), 1},
		{"chapters", testutil.ToFloat64(m.chapters.WithLabelValues("ok")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Errorf("GatherAndCount = %d, %v", n, err)
	}
}
