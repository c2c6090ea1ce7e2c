package diagram

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/matzehuels/docdiag/pkg/errors"
)

// DefaultPrefix is the file name prefix of full-size images.
const DefaultPrefix = "blockdiag"

// ThumbPrefix returns the file name prefix used for thumbnails of prefix.
func ThumbPrefix(prefix string) string {
	return prefix + "_thumb"
}

// Target is the part of a documentation builder the file naming needs.
type Target interface {
	// OutDir is the build output directory.
	OutDir() string
	// ImgPath is the page-relative URL of the image directory. ok is false
	// for builders that keep images next to their output (LaTeX, text).
	ImgPath() (imgpath string, ok bool)
}

// Key returns the content key of a diagram: the SHA-1 hex digest of the
// source followed by the canonical encoding of opts.
func Key(source string, opts Options) string {
	canon, _ := json.Marshal(opts)
	h := sha1.New()
	h.Write([]byte(source))
	h.Write(canon)
	return hex.EncodeToString(h.Sum(nil))
}

// ImageFilename returns the URL (relative to the referring page) and the
// output path of the image for source. The directory of outPath is
// created if needed.
//
// Formats other than PNG, SVG and PDF fail with INVALID_FORMAT; PDF fails
// with UNSUPPORTED when no PDF converter is installed.
func ImageFilename(b Target, source string, format Format, opts Options, prefix string) (relURL, outPath string, err error) {
	f, err := ParseFormat(string(format))
	if err != nil {
		return "", "", err
	}
	if f == PDF && !PDFAvailable() {
		return "", "", errors.New(errors.ErrCodeUnsupported,
			"could not output PDF format; install librsvg (rsvg-convert)")
	}
	if err := errors.ValidatePrefix(prefix); err != nil {
		return "", "", err
	}

	fname := fmt.Sprintf("%s-%s.%s", prefix, Key(source, opts), f.Ext())
	if imgpath, ok := b.ImgPath(); ok {
		relURL = path.Join(imgpath, fname)
		outPath = filepath.Join(b.OutDir(), "_images", fname)
	} else {
		relURL = fname
		outPath = filepath.Join(b.OutDir(), fname)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return "", "", errors.Wrap(errors.ErrCodeInvalidPath, err, "create image directory")
	}
	return relURL, outPath, nil
}
