// Package diagram defines the vocabulary shared by every stage of the
// preprocessor: output formats and the diagram types understood by a
// Kroki-compatible rendering service.
package diagram
