package blockdiag

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"math"
	"os"
	"path"
	"strings"

	"github.com/yuin/goldmark/util"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/matzehuels/docdiag/pkg/diagram"
	"github.com/matzehuels/docdiag/pkg/docs"
	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/xref"
)

type htmlStrategy struct{}

func (htmlStrategy) Resolve(context.Context, *Extension, *docs.Page) error { return nil }

func (htmlStrategy) Emit(ctx context.Context, e *Extension, w util.BufWriter, page *docs.Page, n *Node) error {
	img, err := e.Image(ctx, page, n, e.app.Config().GetString(ConfigHTMLImageFormat))
	if err != nil {
		return err
	}
	regions := e.Regions(page, img)

	alt := n.Options.Alt
	if alt == "" {
		alt = strings.TrimSpace(n.Source)
	}
	alt = html.EscapeString(alt)

	class := "blockdiag"
	if n.Options.Class != "" {
		class += " " + n.Options.Class
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<p class="%s">`, html.EscapeString(class))
	if img.Format == diagram.SVG {
		if err := svgTag(&buf, img, alt, regions); err != nil {
			return err
		}
	} else {
		imgTag(&buf, img, alt, regions, e.nextMap)
	}
	buf.WriteString("</p>\n")
	_, err = w.Write(buf.Bytes())
	return err
}

// displayed returns the artifact shown on the page: the thumbnail if there
// is one.
func displayed(img *Image) *diagram.Artifact {
	if img.Artifact.Thumb != nil {
		return img.Artifact.Thumb
	}
	return img.Artifact
}

// imgTag writes an <img> tag and, for linked nodes, a client-side image
// map scaled to the displayed image.
func imgTag(buf *bytes.Buffer, img *Image, alt string, regions []diagram.Region, nextMap func() int) {
	shown := displayed(img)
	src := img.URL
	if img.ThumbURL != "" {
		src = img.ThumbURL
		fmt.Fprintf(buf, `<a href="%s">`, html.EscapeString(img.URL))
	}

	var mapName string
	if len(regions) > 0 {
		mapName = fmt.Sprintf("map_%s_%d", mapKey(img.URL), nextMap())
	}
	fmt.Fprintf(buf, `<img src="%s" alt="%s" width="%.0f" height="%.0f"`, html.EscapeString(src), alt, shown.Width, shown.Height)
	if mapName != "" {
		fmt.Fprintf(buf, ` usemap="#%s"`, mapName)
	}
	buf.WriteString(" />")
	if img.ThumbURL != "" {
		buf.WriteString("</a>")
	}
	buf.WriteString("\n")

	if mapName == "" {
		return
	}
	scale := 1.0
	if img.Diagram.Width > 0 {
		scale = shown.Width / img.Diagram.Width
	}
	fmt.Fprintf(buf, `<map name="%s">`, mapName)
	for _, r := range regions {
		box := r.Box.Scale(scale)
		fmt.Fprintf(buf, `<area shape="rect" coords="%d,%d,%d,%d" href="%s">`,
			round(box.X1), round(box.Y1), round(box.X2), round(box.Y2), html.EscapeString(r.URL))
	}
	buf.WriteString("</map>")
}

// svgTag inlines the SVG image with resolved node links.
func svgTag(buf *bytes.Buffer, img *Image, alt string, regions []diagram.Region) error {
	shown := displayed(img)
	data, err := readSVG(shown.Path)
	if err != nil {
		return err
	}
	content := diagram.RewriteLinks(diagram.StripProlog(data), xref.Hrefs(regions))

	if img.ThumbURL != "" {
		fmt.Fprintf(buf, `<a href="%s">`, html.EscapeString(img.URL))
	}
	fmt.Fprintf(buf, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" alt="%s" width="%.0f" height="%.0f">`,
		alt, shown.Width, shown.Height)
	buf.Write(content)
	buf.WriteString("</svg>")
	if img.ThumbURL != "" {
		buf.WriteString("</a>")
	}
	return nil
}

// readSVG reads an SVG file, dropping a leading byte order mark.
func readSVG(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open %s", p)
	}
	defer f.Close()
	data, err := io.ReadAll(transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncoding, err, "read %s", p)
	}
	return data, nil
}

// mapKey returns a short id for an image map from the image file name.
func mapKey(url string) string {
	base := strings.TrimSuffix(path.Base(url), path.Ext(url))
	if i := strings.LastIndex(base, "-"); i >= 0 {
		base = base[i+1:]
	}
	if len(base) > 12 {
		base = base[:12]
	}
	return base
}

func round(f float64) int {
	return int(math.Round(f))
}
