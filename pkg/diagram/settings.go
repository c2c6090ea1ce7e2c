package diagram

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Settings are the build-wide rendering settings.
type Settings struct {
	// Fonts maps font families to files; nil uses the built-in font.
	Fonts *FontMap
	// Antialias draws bitmaps at twice the resolution and downsamples.
	Antialias bool
	// Debug logs the full error chain and stack of diagram failures.
	Debug bool
}

// Fingerprint identifies the settings that change rendered output. It is
// empty for the defaults so that plain builds keep stable file names.
func (s Settings) Fingerprint() string {
	fonts := s.Fonts.Digest()
	if !s.Antialias && fonts == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("antialias=%t;fonts=%s", s.Antialias, fonts)))
	return hex.EncodeToString(sum[:8])
}
