package errors

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// ValidateLayerID validates a layer identifier received from a document file
// or an API request.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - Maximum length of 128 characters
//   - Only letters, digits, dash, underscore and dot
func ValidateLayerID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "layer id cannot be empty")
	}
	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "layer id too long (max 128 characters)")
	}
	if !layerIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid layer id: %q", id)
	}
	return nil
}

var layerIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateTemplatePath validates a template location.
// It rejects empty paths and paths containing control characters; the file
// itself is checked when it is read.
func ValidateTemplatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "template path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "template path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "template path contains invalid characters")
		}
	}
	return nil
}

// ValidatePositive checks that a numeric parameter is a finite value above zero.
func ValidatePositive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeInvalidInput, "%s must be a finite number", name)
	}
	if v <= 0 {
		return New(ErrCodeInvalidInput, "%s must be positive, got %g", name, v)
	}
	return nil
}

// ValidateExecutable validates a configured tool name or path.
// Shell metacharacters are rejected because the value ends up in logs and
// error messages that users may copy into a shell.
func ValidateExecutable(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidInput, "executable name cannot be empty")
	}
	if strings.ContainsAny(name, ";|&$`\n\r\x00") {
		return New(ErrCodeInvalidInput, "executable name contains invalid characters: %q", name)
	}
	return nil
}
