package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidatePath validates a file path within a documentation source tree.
// It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateDocName validates a document name (a slash separated source path
// without extension, e.g. "guide/install").
func ValidateDocName(name string) error {
	if err := ValidatePath(name); err != nil {
		return err
	}
	if strings.HasSuffix(name, "/") || strings.Contains(name, "//") {
		return New(ErrCodeInvalidPath, "invalid document name: %q", name)
	}
	return nil
}

// prefixRegex matches valid image filename prefixes.
var prefixRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidatePrefix validates an image filename prefix such as "blockdiag" or
// "blockdiag_thumb". Prefixes become part of output file names, so they must
// not contain separators.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return New(ErrCodeInvalidInput, "filename prefix cannot be empty")
	}
	if len(prefix) > 64 {
		return New(ErrCodeInvalidInput, "filename prefix too long (max 64 characters)")
	}
	if !prefixRegex.MatchString(prefix) {
		return New(ErrCodeInvalidInput, "invalid filename prefix: %q", prefix)
	}
	return nil
}
