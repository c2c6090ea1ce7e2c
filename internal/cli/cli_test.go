package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/pipeline"
)

func TestParseDefines(t *testing.T) {
	got, err := parseDefines([]string{
		"blockdiag_html_image_format=SVG",
		"blockdiag_antialias=true",
		"server.port=9000",
		"project.title=A=B",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"blockdiag_html_image_format": "SVG",
		"blockdiag_antialias":         true,
		"server.port":                 9000,
		"project.title":               "A=B",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %#v, want %#v", k, got[k], v)
		}
	}

	if m, err := parseDefines(nil); err != nil || m != nil {
		t.Errorf("parseDefines(nil) = %v, %v", m, err)
	}
	for _, bad := range []string{"novalue", "=x", " =x"} {
		if _, err := parseDefines([]string{bad}); !errors.Is(err, errors.ErrCodeInvalidOption) {
			t.Errorf("parseDefines(%q) err = %v, want INVALID_OPTION", bad, err)
		}
	}
}

func TestDefaultOutput(t *testing.T) {
	tests := []struct {
		input, format, want string
	}{
		{"flow.diag", "png", "flow.png"},
		{"dir/flow.diag", "SVG", "dir/flow.svg"},
		{"flow", "pdf", "flow.pdf"},
	}
	for _, tt := range tests {
		got, err := defaultOutput(tt.input, tt.format)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("defaultOutput(%q, %q) = %q, want %q", tt.input, tt.format, got, tt.want)
		}
	}

	if _, err := defaultOutput("-", "png"); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("stdin without --output: err = %v", err)
	}
}

func TestReadSource(t *testing.T) {
	got, err := readSource("-", strings.NewReader("blockdiag { A -> B }"))
	if err != nil || got != "blockdiag { A -> B }" {
		t.Errorf("readSource(-) = %q, %v", got, err)
	}

	if _, err := readSource(filepath.Join(t.TempDir(), "missing.diag"), nil); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file: err = %v", err)
	}
}

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRoot(New(io.Discard, LogInfo))
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

const testConfig = "source = \"docs\"\noutput = \"out\"\n"

func TestBuildCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docdiag.toml"), testConfig)
	writeFile(t, filepath.Join(dir, "docs", "index.md"), "# Home\n\n```blockdiag\nblockdiag { A -> B; }\n```\n")

	if _, err := run(t, "build", "-q", "-C", dir, "-b", "text"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out", "index.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Home\n====") {
		t.Errorf("index.txt = %q", data)
	}

	if _, err := run(t, "build", "-q", "-C", dir, "-D", "broken"); !errors.Is(err, errors.ErrCodeInvalidOption) {
		t.Errorf("bad define: err = %v", err)
	}
}

func TestCacheCommands(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docdiag.toml"), testConfig)

	out, err := run(t, "cache", "path", "-C", dir)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "out", ".docdiag"); strings.TrimSpace(out) != want {
		t.Errorf("cache path = %q, want %q", out, want)
	}

	out, err = run(t, "cache", "path", "-C", dir, "--cache-backend", "redis", "--cache-url", "redis://localhost:6379/0")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "redis://localhost:6379/0" {
		t.Errorf("redis cache path = %q", out)
	}

	writeFile(t, filepath.Join(dir, "out", ".docdiag", "ab", "abcd.json"), "{}")
	if _, err := run(t, "cache", "clear", "-C", dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", ".docdiag", "ab")); !os.IsNotExist(err) {
		t.Errorf("cache entry survived clear: %v", err)
	}

	if _, err := run(t, "cache", "clear", "-C", dir, "--cache-backend", "none"); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("clear none backend: err = %v", err)
	}
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "flow.diag")
	writeFile(t, src, "blockdiag { A -> B; }\n")

	if _, err := run(t, "render", src, "--format", "svg"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "flow.svg"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("<svg")) {
		t.Error("output is not an SVG document")
	}

	if _, err := run(t, "render", src, "--format", "bmp"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("bmp: err = %v", err)
	}
}

func TestRenderFormatCompletion(t *testing.T) {
	out, err := run(t, "__complete", "render", "flow.diag", "--format", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"png\n", "svg\n", "pdf\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("completion output missing %q:\n%s", want, out)
		}
	}
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			if _, err := run(t, "completion", shell); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestPrintBuildResult(t *testing.T) {
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	defer func() { stdout = old }()

	printBuildResult(&pipeline.Result{
		Builder:   "html",
		OutDir:    "_build",
		Documents: 1,
		Diagrams:  3,
		Rendered:  1,
		Cached:    2,
		Warnings:  1,
	})

	out := buf.String()
	for _, want := range []string{"Built 1 document with the html builder", "_build", "3 diagrams", "1 drawn", "2 cached", "1 warning"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "failed") {
		t.Errorf("no failures expected:\n%s", out)
	}
}
