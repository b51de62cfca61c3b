package diagram

import "slices"

// KrokiTypes lists the diagram types served by a stock Kroki deployment.
// It is the default allow-list for fenced blocks when no language prefix is
// configured.
var KrokiTypes = []string{
	"actdiag",
	"blockdiag",
	"bpmn",
	"bytefield",
	"c4plantuml",
	"d2",
	"dbml",
	"ditaa",
	"erd",
	"excalidraw",
	"graphviz",
	"mermaid",
	"nomnoml",
	"nwdiag",
	"packetdiag",
	"pikchr",
	"plantuml",
	"rackdiag",
	"seqdiag",
	"structurizr",
	"svgbob",
	"symbolator",
	"tikz",
	"umlet",
	"vega",
	"vegalite",
	"wavedrom",
	"wireviz",
}

// aliases maps common fence tags to the canonical Kroki type.
var aliases = map[string]string{
	"dot":  "graphviz",
	"puml": "plantuml",
}

// Canonical returns the canonical name for a diagram type tag.
func Canonical(tag string) string {
	if c, ok := aliases[tag]; ok {
		return c
	}
	return tag
}

// IsKrokiType reports whether name is in [KrokiTypes] after alias resolution.
func IsKrokiType(name string) bool {
	return slices.Contains(KrokiTypes, Canonical(name))
}
