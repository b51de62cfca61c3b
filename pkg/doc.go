// Package pkg provides the libraries behind the mdbook-diagrams preprocessor.
//
// # Overview
//
// mdbook-diagrams finds fenced diagram blocks in markdown, renders each one
// through a Kroki-compatible service (or in-process for graphviz and d2), and
// replaces the block with an image. Rendered images are cached on disk by a
// content hash, so unchanged diagrams never hit the network twice.
//
// # Architecture
//
// The data flow for one chapter:
//
//	chapter markdown
//	         ↓
//	    [markdown] Extract (diagram blocks with byte spans)
//	         ↓
//	    [resolve] Resolver (file store → shared tier → renderer)
//	         ↓
//	    [substitute] Fragment (data URI, HTML figure, or file link)
//	         ↓
//	    [markdown] Splice (untouched bytes copied verbatim)
//	         ↓
//	chapter markdown
//
// [pipeline] runs this flow per chapter with bounded concurrency and applies
// the failure policy. [mdbook] feeds it the chapters of a book.
//
// # Main Packages
//
// ## Document handling
//
// [markdown] - Parse chapters with goldmark, locate fenced diagram blocks
// (including those nested in block quotes and lists) and splice replacements
// into the original bytes.
//
// [substitute] - Build the markdown that replaces a block: inline data URIs
// or HTML figures for self-contained renderers, file references otherwise.
//
// [mdbook] - The preprocessor protocol: read [context, book] from stdin,
// walk nested chapters, rewrite chapter contents in place.
//
// ## Rendering
//
// [render] - The Renderer interface, the Kroki HTTP client with timeouts,
// retries and failure classification, and Chain for local fallbacks.
//
// [render/local] - In-process renderers for graphviz (go-graphviz) and d2.
//
// [resolve] - Cache-first resolution of one diagram to an artifact, with
// concurrent requests for the same diagram coalesced.
//
// ## Infrastructure
//
// [cache] - Content keys, the on-disk artifact store, and optional shared
// tiers (memory, redis) behind the Cache interface.
//
// [config] - Configuration from book.toml, standalone TOML/YAML files and the
// mdbook context.
//
// [httputil] - The retrying HTTP client and its logging bridge.
//
// [observability] - Hook interfaces for pipeline, render, cache and HTTP
// events, with a Prometheus implementation.
//
// [errors] - Coded errors and input validation.
//
// # Testing
//
// Run tests:
//
//	go test ./...                                   # All tests
//	go test ./pkg/markdown/...                      # Specific package
//	MDBOOK_DIAGRAMS_TEST_REDIS_URL=redis://localhost:6379/15 go test ./pkg/cache/
//
// [markdown]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/markdown
// [substitute]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/substitute
// [mdbook]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/mdbook
// [render]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/render
// [render/local]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/render/local
// [resolve]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/resolve
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/config
// [httputil]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/mdbook-diagrams/pkg/errors
package pkg
