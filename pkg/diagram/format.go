package diagram

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

// Format is an image output format requested from the rendering service.
type Format string

// Supported output formats.
const (
	SVG Format = "svg"
	PNG Format = "png"
)

// DefaultFormat is used when no output format is configured.
const DefaultFormat = SVG

// ParseFormat converts a configuration string into a Format.
// Matching is case-insensitive; surrounding whitespace is ignored.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case SVG:
		return SVG, nil
	case PNG:
		return PNG, nil
	default:
		return "", fmt.Errorf("invalid output_format: %q (expected 'svg' or 'png')", s)
	}
}

// String returns the format name as used in URLs and file extensions.
func (f Format) String() string { return string(f) }

// Ext returns the file extension (without the dot).
func (f Format) Ext() string { return string(f) }

// MediaType returns the IANA media type of the format.
func (f Format) MediaType() string {
	switch f {
	case PNG:
		return "image/png"
	default:
		return "image/svg+xml"
	}
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	return f == SVG || f == PNG
}

// FormatFromMediaType maps a response Content-Type to a Format.
// Parameters such as charset are ignored. ok is false for unknown types.
func FormatFromMediaType(contentType string) (f Format, ok bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return "", false
	}
	switch mt {
	case "image/svg+xml":
		return SVG, true
	case "image/png":
		return PNG, true
	}
	return "", false
}
