package diagram

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// LookPath finds the PDF converter. Tests replace it.
var LookPath = exec.LookPath

const rsvgConvert = "rsvg-convert"

// PDFAvailable reports whether rsvg-convert is installed.
func PDFAvailable() bool {
	_, err := LookPath(rsvgConvert)
	return err == nil
}

// svgToPDF converts SVG bytes to PDF using rsvg-convert.
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func svgToPDF(ctx context.Context, svg []byte) ([]byte, error) {
	bin, err := LookPath(rsvgConvert)
	if err != nil {
		return nil, fmt.Errorf("pdf export requires librsvg. Install with:\n  macOS:  brew install librsvg\n  Linux:  apt install librsvg2-bin")
	}

	cmd := exec.CommandContext(ctx, bin, "-f", "pdf")
	cmd.Stdin = bytes.NewReader(svg)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rsvg-convert: %v: %s", err, errBuf.String())
	}
	return out.Bytes(), nil
}
