package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/latexify/pkg/compile"
	"github.com/matzehuels/latexify/pkg/document"
	"github.com/matzehuels/latexify/pkg/errors"
	"github.com/matzehuels/latexify/pkg/latexify"
)

func TestMain(m *testing.M) {
	statusOut = io.Discard
	os.Exit(m.Run())
}

// fakeToolchain stands in for pdflatex and pdf2svg.
type fakeToolchain struct {
	mu       sync.Mutex
	compiles int
	sources  []string
	err      error
}

func (f *fakeToolchain) Compile(_ context.Context, texPath, outDir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compiles++
	src, err := os.ReadFile(texPath)
	if err != nil {
		return "", err
	}
	f.sources = append(f.sources, string(src))
	if f.err != nil {
		return "", f.err
	}
	pdf := filepath.Join(outDir, compile.PDFFile)
	return pdf, os.WriteFile(pdf, []byte("%PDF-1.5"), 0o644)
}

func (f *fakeToolchain) Convert(_ context.Context, _, svgPath string) error {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="24pt" height="9pt" viewBox="0 0 24 9"></svg>`
	return os.WriteFile(svgPath, []byte(svg), 0o644)
}

func newTestCLI(t *testing.T) (*CLI, *fakeToolchain) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	tc := &fakeToolchain{}
	c := New(io.Discard, LogInfo)
	c.Toolchain = tc
	return c, tc
}

func execute(t *testing.T, c *CLI, stdin string, args ...string) (string, error) {
	t.Helper()
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCompileToStdout(t *testing.T) {
	c, tc := newTestCLI(t)
	out, err := execute(t, c, "", "compile", "x^2", "--no-cache")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.HasPrefix(out, "<svg") {
		t.Errorf("stdout = %q, want SVG", out)
	}
	if len(tc.sources) != 1 || !strings.Contains(tc.sources[0], "x^2") {
		t.Errorf("sources = %v", tc.sources)
	}
}

func TestCompileFromStdinToFileUsesCache(t *testing.T) {
	c, tc := newTestCLI(t)
	output := filepath.Join(t.TempDir(), "eq.svg")

	for i := 0; i < 2; i++ {
		if _, err := execute(t, c, "a+b\n", "compile", "-", "-o", output, "--font-size", "14"); err != nil {
			t.Fatalf("compile #%d: %v", i, err)
		}
	}
	if tc.compiles != 1 {
		t.Errorf("compiles = %d, want 1 (second run cached)", tc.compiles)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("<svg")) {
		t.Errorf("output = %q", data)
	}
	if !strings.Contains(tc.sources[0], `\fontsize{ 14 }{ 17 }`) {
		t.Errorf("source lacks font size 14/17:\n%s", tc.sources[0])
	}

	if _, err := execute(t, c, "a+b\n", "compile", "-", "-o", output, "--font-size", "14", "--refresh"); err != nil {
		t.Fatalf("compile --refresh: %v", err)
	}
	if tc.compiles != 2 {
		t.Errorf("compiles = %d, want 2 after --refresh", tc.compiles)
	}
}

func TestCompileErrors(t *testing.T) {
	c, tc := newTestCLI(t)
	if _, err := execute(t, c, "", "compile", "x", "--width", "0"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("width 0: error = %v, want INVALID_INPUT", err)
	}

	tc.err = errors.Wrap(errors.ErrCodeExternalProcess, &errors.ProcessError{Stage: "compile", Command: "pdflatex", ExitCode: 1}, "pdflatex failed")
	if _, err := execute(t, c, "", "compile", `\oops`, "--no-cache"); !errors.Is(err, errors.ErrCodeExternalProcess) {
		t.Errorf("toolchain failure: error = %v, want EXTERNAL_PROCESS", err)
	}
}

func loadFile(t *testing.T, path string) *document.Document {
	t.Helper()
	store, id, err := document.OpenPath(path)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := store.Load(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestDocumentToggleWorkflow(t *testing.T) {
	c, _ := newTestCLI(t)
	path := filepath.Join(t.TempDir(), "slide.json")

	steps := [][]string{
		{"doc", "new", "Slide", "-o", path},
		{"doc", "add-text", path, `\sum_i i`, "--name", "Sum", "--x", "5", "--y", "6", "--width", "120", "--height", "30", "--font-size", "11", "--select"},
	}
	for _, args := range steps {
		if _, err := execute(t, c, "", args...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	doc := loadFile(t, path)
	if doc.Name != "Slide" || len(doc.Layers) != 1 || len(doc.Selection) != 1 {
		t.Fatalf("document = %+v", doc)
	}
	text := doc.Layers[0]

	if _, err := execute(t, c, "", "toggle", path); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	doc = loadFile(t, path)
	if len(doc.Layers) != 1 || doc.Layers[0].Kind != document.KindGroup {
		t.Fatalf("layers after render = %+v", doc.Layers)
	}
	group := doc.Layers[0]
	if group.Frame != (document.Frame{X: 5, Y: 6, Width: 24, Height: 9}) {
		t.Errorf("group frame = %+v", group.Frame)
	}
	if doc.Settings[group.ID][latexify.KeyContent] != `\sum_i i` {
		t.Errorf("settings = %v", doc.Settings[group.ID])
	}

	out, err := execute(t, c, "", "doc", "show", path)
	if err != nil {
		t.Fatalf("doc show: %v", err)
	}
	if !strings.Contains(out, "latex") || !strings.Contains(out, `\sum_i i`) {
		t.Errorf("doc show = %q", out)
	}

	if _, err := execute(t, c, "", "toggle", path); err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	doc = loadFile(t, path)
	back := doc.Layers[0]
	if back.Kind != document.KindText || back.Text != text.Text || back.Frame != text.Frame || back.FontSize != 11 || !back.FixedWidth {
		t.Errorf("reverted layer = %+v, want text like %+v", back, text)
	}
}

func TestToggleRefusalLeavesFile(t *testing.T) {
	c, tc := newTestCLI(t)
	path := filepath.Join(t.TempDir(), "empty.json")
	if _, err := execute(t, c, "", "doc", "new", "Empty", "-o", path); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, c, "", "doc", "add-text", path, "x"); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	_, err = execute(t, c, "", "toggle", path)
	if !errors.Is(err, errors.ErrCodePrecondition) {
		t.Fatalf("toggle error = %v, want PRECONDITION", err)
	}
	if tc.compiles != 0 {
		t.Error("refused toggle must not compile")
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("refused toggle rewrote the document")
	}
}

func TestToggleSelectFlag(t *testing.T) {
	c, _ := newTestCLI(t)
	path := filepath.Join(t.TempDir(), "sel.json")
	if _, err := execute(t, c, "", "doc", "new", "Sel", "-o", path); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, c, "", "doc", "add-text", path, "y"); err != nil {
		t.Fatal(err)
	}
	id := loadFile(t, path).Layers[0].ID

	if _, err := execute(t, c, "", "toggle", path, "--select", id); err != nil {
		t.Fatalf("toggle --select: %v", err)
	}
	if got := loadFile(t, path).Layers[0].Kind; got != document.KindGroup {
		t.Errorf("kind = %v, want group", got)
	}
}

func TestDocStoreCommands(t *testing.T) {
	c, _ := newTestCLI(t)
	if _, err := execute(t, c, "", "doc", "new", "Poster"); err != nil {
		t.Fatalf("doc new: %v", err)
	}
	out, err := execute(t, c, "", "doc", "list")
	if err != nil {
		t.Fatalf("doc list: %v", err)
	}
	if !strings.Contains(out, "Poster") {
		t.Fatalf("doc list = %q", out)
	}
	id := strings.Fields(out)[0]

	if _, err := execute(t, c, "", "doc", "add-text", id, "z", "--select"); err != nil {
		t.Fatalf("doc add-text: %v", err)
	}
	if _, err := execute(t, c, "", "doc", "select", id); err != nil {
		t.Fatalf("doc select: %v", err)
	}
	out, err = execute(t, c, "", "doc", "show", id, "--json")
	if err != nil {
		t.Fatalf("doc show: %v", err)
	}
	if !strings.Contains(out, `"selection": []`) {
		t.Errorf("selection not cleared:\n%s", out)
	}
	if _, err := execute(t, c, "", "doc", "rm", id); err != nil {
		t.Fatalf("doc rm: %v", err)
	}
	if _, err := execute(t, c, "", "doc", "show", id); err == nil {
		t.Error("doc show after rm should fail")
	}
}

func TestConfigCommands(t *testing.T) {
	c, _ := newTestCLI(t)
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("compiler = \"lualatex\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, c, "", "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != filepath.Join(dir, "config.toml") {
		t.Errorf("config path = %q", out)
	}

	out, err = execute(t, c, "", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `compiler = "lualatex"`) || !strings.Contains(out, `converter = "pdf2svg"`) {
		t.Errorf("config show = %q", out)
	}
}

func TestConfigFlag(t *testing.T) {
	c, _ := newTestCLI(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte("[cache]\nbackend = \"none\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, c, "", "--config", path, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `backend = "none"`) {
		t.Errorf("config show = %q", out)
	}
}

func TestCacheCommands(t *testing.T) {
	c, _ := newTestCLI(t)
	out, err := execute(t, c, "", "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(os.Getenv("XDG_CACHE_HOME"), appName)
	if strings.TrimSpace(out) != want {
		t.Errorf("cache path = %q, want %q", out, want)
	}

	if _, err := execute(t, c, "", "compile", "q", "-o", filepath.Join(t.TempDir(), "q.svg")); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, c, "", "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	entries, _ := os.ReadDir(want)
	for _, e := range entries {
		sub, _ := os.ReadDir(filepath.Join(want, e.Name()))
		if len(sub) > 0 {
			t.Errorf("cache not empty: %s has %d entries", e.Name(), len(sub))
		}
	}
}

func TestCompletion(t *testing.T) {
	c, _ := newTestCLI(t)
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := execute(t, c, "", "completion", shell)
		if err != nil {
			t.Fatalf("completion %s: %v", shell, err)
		}
		if !strings.Contains(out, appName) {
			t.Errorf("completion %s output lacks %q", shell, appName)
		}
	}
	if _, err := execute(t, c, "", "completion", "tcsh"); err == nil {
		t.Error("completion tcsh should fail")
	}
}

func TestReadInput(t *testing.T) {
	tests := []struct {
		arg, stdin, want string
	}{
		{"x^2", "ignored", "x^2"},
		{"-", "a\nb\n\n", "a\nb"},
		{"", "c", "c"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.arg), func(t *testing.T) {
			got, err := readInput(tt.arg, strings.NewReader(tt.stdin))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("readInput() = %q, want %q", got, tt.want)
			}
		})
	}
}
