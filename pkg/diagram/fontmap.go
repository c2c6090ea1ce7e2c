package diagram

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/docdiag/pkg/errors"
)

// FontMap maps blockdiag font families (sansserif, serif-bold, ...) to font
// files. It is read from a TOML file:
//
//	[fontmap]
//	sansserif = "/usr/share/fonts/truetype/ipafont/ipagp.ttf"
//	"sansserif-bold" = "/usr/share/fonts/truetype/ipafont/ipag.ttf"
type FontMap struct {
	Families map[string]string `toml:"fontmap"`

	defaultFont string
}

// NewFontMap returns an empty font map using the built-in font.
func NewFontMap() *FontMap {
	return &FontMap{Families: map[string]string{}}
}

// LoadFontMap reads a font map file. An empty path yields an empty map.
func LoadFontMap(path string) (*FontMap, error) {
	fm := NewFontMap()
	if path == "" {
		return fm, nil
	}
	if _, err := toml.DecodeFile(path, fm); err != nil {
		return NewFontMap(), errors.Wrap(errors.ErrCodeInvalidConfig, err, "load fontmap %s", path)
	}
	families := make(map[string]string, len(fm.Families))
	for k, v := range fm.Families {
		if !filepath.IsAbs(v) {
			v = filepath.Join(filepath.Dir(path), v)
		}
		families[strings.ToLower(k)] = v
	}
	fm.Families = families
	return fm, nil
}

// DetectFont returns the first candidate font file that exists.
func DetectFont(candidates []string) (string, error) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c, nil
		}
	}
	return "", errors.New(errors.ErrCodeFileNotFound, "no usable font in %s", strings.Join(candidates, ", "))
}

// SetDefaultFont sets the font used for nodes without a font family.
func (m *FontMap) SetDefaultFont(path string) {
	m.defaultFont = path
}

// DefaultFont returns the default font file, falling back to the
// sansserif family. It is empty when the built-in font is used.
func (m *FontMap) DefaultFont() string {
	if m == nil {
		return ""
	}
	if m.defaultFont != "" {
		return m.defaultFont
	}
	return m.Families["sansserif"]
}

// Lookup returns the font file of a family. Unknown bold or italic variants
// fall back to the base family.
func (m *FontMap) Lookup(family string) (string, bool) {
	if m == nil {
		return "", false
	}
	family = strings.ToLower(family)
	if f, ok := m.Families[family]; ok {
		return f, true
	}
	if base, _, found := strings.Cut(family, "-"); found {
		if f, ok := m.Families[base]; ok {
			return f, true
		}
	}
	return "", false
}

// Digest identifies the fonts in use. It is empty for the built-in font.
func (m *FontMap) Digest() string {
	if m == nil || (m.defaultFont == "" && len(m.Families) == 0) {
		return ""
	}
	h := sha256.New()
	fmt.Fprintf(h, "default=%s\n", m.defaultFont)
	for _, k := range sortedKeys(m.Families) {
		fmt.Fprintf(h, "%s=%s\n", k, m.Families[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// dirs returns the directories holding the mapped fonts.
func (m *FontMap) dirs() []string {
	seen := map[string]bool{}
	var dirs []string
	add := func(file string) {
		if file == "" {
			return
		}
		if d := filepath.Dir(file); !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	add(m.DefaultFont())
	for _, k := range sortedKeys(m.Families) {
		add(m.Families[k])
	}
	return dirs
}
