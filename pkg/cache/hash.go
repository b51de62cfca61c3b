package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"maps"
	"slices"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
)

// Key identifies a rendered artifact.
//
// Sum is the hex SHA-1 digest of the diagram source, output format, diagram
// type and, when present, the renderer options. Identical inputs always give
// the same Sum; changing any of them changes it.
type Key struct {
	Sum    string
	Format diagram.Format
}

// NewKey derives the key for a diagram. options may be nil.
func NewKey(source, diagramType string, format diagram.Format, options map[string]string) Key {
	h := sha1.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	write(source)
	write(format.String())
	write(diagramType)
	for _, name := range slices.Sorted(maps.Keys(options)) {
		write(name)
		write(options[name])
	}

	return Key{Sum: hex.EncodeToString(h.Sum(nil)), Format: format}
}

// String returns "<sum>.<ext>", the key as used by the shared tier.
func (k Key) String() string {
	return k.Sum + "." + k.Format.Ext()
}

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool {
	return k.Sum == ""
}
