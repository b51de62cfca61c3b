package errors

import (
	"strings"
	"unicode"
)

// ValidateFilenamePrefix validates the prefix prepended to every cached
// artifact's filename. The prefix becomes part of a basename inside the
// artifact directory, so it must not be able to escape it.
//
// Validation rules:
//   - May be empty (artifacts are then named by their digest alone)
//   - Maximum length of 64 characters
//   - No control characters or null bytes
//   - No path separators or traversal sequences
func ValidateFilenamePrefix(prefix string) error {
	const maxPrefixLength = 64
	if len(prefix) > maxPrefixLength {
		return New(ErrCodeInvalidConfig, "filename_prefix too long (max %d characters)", maxPrefixLength)
	}

	for _, r := range prefix {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidConfig, "filename_prefix contains invalid control characters")
		}
	}

	if strings.ContainsAny(prefix, "/\\") {
		return New(ErrCodeInvalidConfig, "filename_prefix cannot contain path separators")
	}

	if strings.Contains(prefix, "..") {
		return New(ErrCodeInvalidConfig, "filename_prefix cannot contain path traversal sequences (..)")
	}

	return nil
}

// ValidateLanguagePrefix validates the fenced code block language prefix.
// Language tags are single words, so the prefix cannot contain whitespace.
func ValidateLanguagePrefix(prefix string) error {
	for _, r := range prefix {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return New(ErrCodeInvalidConfig, "language_prefix cannot contain whitespace or control characters: %q", prefix)
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidConfig, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidConfig, "URL must use http or https scheme: %q", rawURL)
	}

	return nil
}

// ValidateDiagramType validates a diagram type name before it is used as a
// path segment of the rendering service URL.
func ValidateDiagramType(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "diagram type cannot be empty")
	}
	if len(name) > 64 {
		return New(ErrCodeInvalidInput, "diagram type too long (max 64 characters)")
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return New(ErrCodeInvalidInput, "diagram type contains invalid characters: %q", name)
		}
	}
	return nil
}
