package diagram

import (
	"strings"

	"github.com/matzehuels/docdiag/pkg/errors"
)

// Format is an output image format.
type Format string

// Supported output formats.
const (
	PNG Format = "PNG"
	SVG Format = "SVG"
	PDF Format = "PDF"
)

// Formats lists the supported formats.
var Formats = []Format{PNG, SVG, PDF}

// ParseFormat parses a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToUpper(strings.TrimSpace(s))); f {
	case PNG, SVG, PDF:
		return f, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unknown format: %s", s)
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	return strings.ToLower(string(f))
}

func (f Format) String() string { return string(f) }
