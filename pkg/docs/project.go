package docs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/docdiag/pkg/errors"
)

// SourceSuffix is the extension of document sources.
const SourceSuffix = ".md"

// Project is the set of documents of a build.
type Project struct {
	SourceDir string

	docs   []*Document
	byName map[string]*Document
}

// Discover returns the names of all documents under srcDir, sorted.
// Directories whose name starts with "." or "_" are skipped, as are the
// excluded directories.
func Discover(srcDir string, exclude ...string) ([]string, error) {
	skip := map[string]bool{}
	for _, e := range exclude {
		if abs, err := filepath.Abs(e); err == nil {
			skip[abs] = true
		}
	}

	var names []string
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == srcDir {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") {
				return filepath.SkipDir
			}
			if abs, err := filepath.Abs(p); err == nil && skip[abs] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), SourceSuffix) {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.ToSlash(rel), SourceSuffix)
		if err := errors.ValidateDocName(name); err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrCodeInvalidPath) {
			return nil, err
		}
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "source directory not found: %s", srcDir)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "scan %s", srcDir)
	}
	sort.Strings(names)
	return names, nil
}

// LoadProject discovers and parses the documents under srcDir. Documents
// are read and parsed concurrently.
func (a *App) LoadProject(ctx context.Context, srcDir string, exclude ...string) (*Project, error) {
	names, err := Discover(srcDir, exclude...)
	if err != nil {
		return nil, err
	}

	md := a.markdown()
	docs := make([]*Document, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := filepath.Join(srcDir, filepath.FromSlash(name)+SourceSuffix)
			raw, err := os.ReadFile(p)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "read %s", p)
			}
			meta, body, err := splitFrontMatter(raw)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s", p)
			}

			pc := parser.NewContext()
			pc.Set(docNameKey, name)
			pc.Set(srcDirKey, srcDir)
			doc := &Document{Name: name, Path: p, Meta: meta, Source: body}
			doc.AST = md.Parser().Parse(text.NewReader(body), parser.WithContext(pc))
			doc.collect()
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewProject(srcDir, docs), nil
}

// NewProject creates a project from parsed documents.
func NewProject(srcDir string, docs []*Document) *Project {
	p := &Project{SourceDir: srcDir, docs: docs, byName: make(map[string]*Document, len(docs))}
	for _, d := range docs {
		p.byName[d.Name] = d
	}
	return p
}

// Documents returns the documents in name order.
func (p *Project) Documents() []*Document {
	return p.docs
}

// Doc returns a document by name.
func (p *Project) Doc(name string) (*Document, bool) {
	d, ok := p.byName[name]
	return d, ok
}

// DocNames returns the document names in order.
func (p *Project) DocNames() []string {
	names := make([]string, len(p.docs))
	for i, d := range p.docs {
		names[i] = d.Name
	}
	return names
}

// Targets returns the anchor ids defined by a document.
func (p *Project) Targets(docname string) []string {
	if d, ok := p.byName[docname]; ok {
		return d.Targets
	}
	return nil
}
