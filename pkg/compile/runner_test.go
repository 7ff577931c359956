package compile

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/latexify/pkg/cache"
	"github.com/matzehuels/latexify/pkg/errors"
)

// fakeToolchain writes placeholder artifacts instead of running pdflatex and
// pdf2svg, and records what it was asked to do.
type fakeToolchain struct {
	mu          sync.Mutex
	compileErr  error
	convertErr  error
	compiles    int
	converts    int
	sources     []string
	scratchDirs []string
}

func (f *fakeToolchain) Compile(ctx context.Context, texPath, outDir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compiles++
	f.scratchDirs = append(f.scratchDirs, outDir)
	src, err := os.ReadFile(texPath)
	if err != nil {
		return "", err
	}
	f.sources = append(f.sources, string(src))
	if f.compileErr != nil {
		return "", f.compileErr
	}
	pdf := filepath.Join(outDir, PDFFile)
	return pdf, os.WriteFile(pdf, []byte("%PDF-1.5"), 0o644)
}

func (f *fakeToolchain) Convert(ctx context.Context, pdfPath, svgPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.converts++
	if f.convertErr != nil {
		return f.convertErr
	}
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="20pt" height="10pt" viewBox="0 0 20 10"><!-- %s --></svg>`, filepath.Base(pdfPath))
	return os.WriteFile(svgPath, []byte(svg), 0o644)
}

func processErr(stage, cmd string) error {
	return errors.Wrap(errors.ErrCodeExternalProcess, &errors.ProcessError{
		Stage: stage, Command: cmd, ExitCode: 1, Output: "! LaTeX Error",
	}, "%s failed", cmd)
}

func newTestRunner(t *testing.T, tc Toolchain, c cache.Cache) *Runner {
	t.Helper()
	return NewRunner(c, tc, nil, Options{ScratchRoot: t.TempDir()})
}

var sampleRequest = Request{Content: "x^2", Width: 100, Height: 50, FontSize: 10}

func TestSkipFontSize(t *testing.T) {
	tests := []struct {
		size, want float64
	}{
		{10, 12},
		{11, 13},
		{12, 14},
		{14, 17},
		{0.5, 1},
	}
	for _, tt := range tests {
		if got := SkipFontSize(tt.size); got != tt.want {
			t.Errorf("SkipFontSize(%v) = %v, want %v", tt.size, got, tt.want)
		}
	}

	p := sampleRequest.Params()
	if p.SkipFontSize != 12 || p.Width != 100 || p.Height != 50 || p.Document != "x^2" {
		t.Errorf("Params() = %+v", p)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", sampleRequest, false},
		{"empty content", Request{Width: 1, Height: 1, FontSize: 1}, false},
		{"zero width", Request{Width: 0, Height: 1, FontSize: 1}, true},
		{"negative height", Request{Width: 1, Height: -1, FontSize: 1}, true},
		{"zero font size", Request{Width: 1, Height: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestCompileSuccess(t *testing.T) {
	tc := &fakeToolchain{}
	r := newTestRunner(t, tc, nil)

	res, err := r.CompileSource(context.Background(), `\begin{document}{{document}}\end{document}`, sampleRequest)
	if err != nil {
		t.Fatalf("CompileSource: %v", err)
	}
	if !strings.Contains(string(res.SVG), "<svg") {
		t.Errorf("SVG = %q", res.SVG)
	}
	if res.Source != `\begin{document}x^2\end{document}` {
		t.Errorf("Source = %q", res.Source)
	}
	if tc.sources[0] != res.Source {
		t.Errorf("scratch file content = %q, want rendered source", tc.sources[0])
	}
	if res.CacheHit {
		t.Error("first compile should not be a cache hit")
	}
	if res.RequestID == "" {
		t.Error("RequestID should be set")
	}
	if _, err := os.Stat(tc.scratchDirs[0]); !os.IsNotExist(err) {
		t.Error("scratch directory should be removed after compile")
	}
	if filepath.Base(tc.scratchDirs[0]) != "latexify-"+res.RequestID {
		t.Errorf("scratch dir %q should be named after the request id", tc.scratchDirs[0])
	}
}

func TestCompileKeepScratch(t *testing.T) {
	tc := &fakeToolchain{}
	r := NewRunner(nil, tc, nil, Options{ScratchRoot: t.TempDir(), KeepScratch: true})

	res, err := r.CompileSource(context.Background(), "{{document}}", sampleRequest)
	if err != nil {
		t.Fatalf("CompileSource: %v", err)
	}
	for _, name := range []string{SourceFile, PDFFile, SVGFile} {
		if _, err := os.Stat(filepath.Join(res.ScratchDir, name)); err != nil {
			t.Errorf("%s should be kept: %v", name, err)
		}
	}
}

func TestCompileFailureInCompiler(t *testing.T) {
	tc := &fakeToolchain{compileErr: processErr(StageCompile, "pdflatex")}
	r := newTestRunner(t, tc, nil)

	res, err := r.CompileSource(context.Background(), "{{document}}", sampleRequest)
	if err == nil {
		t.Fatal("expected an error when the compiler fails")
	}
	if res != nil {
		t.Error("no result should be returned on failure")
	}
	if !errors.Is(err, errors.ErrCodeExternalProcess) {
		t.Errorf("expected EXTERNAL_PROCESS, got %v", err)
	}
	if tc.converts != 0 {
		t.Error("converter must not run after a compiler failure")
	}
}

func TestCompileFailureInConverter(t *testing.T) {
	tc := &fakeToolchain{convertErr: processErr(StageConvert, "pdf2svg")}
	r := newTestRunner(t, tc, nil)

	_, err := r.CompileSource(context.Background(), "{{document}}", sampleRequest)
	pe, ok := errors.AsProcessError(err)
	if !ok {
		t.Fatalf("expected a ProcessError, got %v", err)
	}
	if pe.Stage != StageConvert || pe.Command != "pdf2svg" {
		t.Errorf("ProcessError = %+v", pe)
	}
	if tc.compiles != 1 || tc.converts != 1 {
		t.Errorf("compiles = %d, converts = %d", tc.compiles, tc.converts)
	}
}

func TestCompileFailuresAreNotCached(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tc := &fakeToolchain{convertErr: processErr(StageConvert, "pdf2svg")}
	r := newTestRunner(t, tc, fc)

	if _, err := r.CompileSource(context.Background(), "{{document}}", sampleRequest); err == nil {
		t.Fatal("expected failure")
	}
	tc.convertErr = nil
	res, err := r.CompileSource(context.Background(), "{{document}}", sampleRequest)
	if err != nil {
		t.Fatalf("second compile: %v", err)
	}
	if res.CacheHit {
		t.Error("a failed compile must not populate the cache")
	}
}

func TestCompileCache(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tc := &fakeToolchain{}
	r := newTestRunner(t, tc, fc)
	ctx := context.Background()

	first, err := r.CompileSource(ctx, "{{document}}", sampleRequest)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.CompileSource(ctx, "{{document}}", sampleRequest)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit {
		t.Error("second compile should hit the cache")
	}
	if string(second.SVG) != string(first.SVG) {
		t.Error("cached SVG should equal the compiled SVG")
	}
	if tc.compiles != 1 {
		t.Errorf("toolchain ran %d times, want 1", tc.compiles)
	}

	other := sampleRequest
	other.FontSize = 12
	if res, _ := r.CompileSource(ctx, "{{document}}", other); res.CacheHit {
		t.Error("a different font size must not hit the cache")
	}

	r.Options.Refresh = true
	if res, _ := r.CompileSource(ctx, "{{document}}", sampleRequest); res.CacheHit {
		t.Error("Refresh should bypass the cache")
	}
}

func TestCompileConcurrentRequestsAreIsolated(t *testing.T) {
	tc := &fakeToolchain{}
	r := newTestRunner(t, tc, nil)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := sampleRequest
			req.Content = fmt.Sprintf("item-%d", i)
			res, err := r.CompileSource(context.Background(), "{{document}}", req)
			if err != nil {
				errs <- err
				return
			}
			if res.Source != req.Content {
				errs <- fmt.Errorf("request %d got source %q", i, res.Source)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	seen := make(map[string]bool)
	for _, d := range tc.scratchDirs {
		if seen[d] {
			t.Errorf("scratch directory %s reused", d)
		}
		seen[d] = true
	}
}

func TestCompileTemplateErrors(t *testing.T) {
	tc := &fakeToolchain{}
	r := newTestRunner(t, tc, nil)
	ctx := context.Background()

	_, err := r.Compile(ctx, filepath.Join(t.TempDir(), "missing.tex"), sampleRequest)
	if !errors.Is(err, errors.ErrCodeTemplateRead) {
		t.Errorf("missing template: expected TEMPLATE_READ, got %v", err)
	}

	_, err = r.CompileSource(ctx, "{{#open}}", sampleRequest)
	if !errors.Is(err, errors.ErrCodeTemplateInvalid) {
		t.Errorf("bad template: expected TEMPLATE_INVALID, got %v", err)
	}
	if tc.compiles != 0 {
		t.Error("toolchain must not run when the template fails")
	}
}

func TestCompileFromTemplateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.tex")
	if err := os.WriteFile(path, []byte("size={{fontSize}}/{{skipFontSize}} {{document}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	tc := &fakeToolchain{}
	r := newTestRunner(t, tc, nil)

	res, err := r.Compile(context.Background(), path, sampleRequest)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Source != "size=10/12 x^2" {
		t.Errorf("Source = %q", res.Source)
	}
}

func TestCompileInvalidRequest(t *testing.T) {
	tc := &fakeToolchain{}
	r := newTestRunner(t, tc, nil)

	_, err := r.Compile(context.Background(), "", Request{Content: "x", Width: -1, Height: 1, FontSize: 1})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestCompileAsync(t *testing.T) {
	tc := &fakeToolchain{compileErr: processErr(StageCompile, "pdflatex")}
	r := newTestRunner(t, tc, nil)

	select {
	case out := <-r.CompileAsync(context.Background(), "", sampleRequest):
		if out.Err == nil || out.Result != nil {
			t.Errorf("Outcome = %+v", out)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("CompileAsync did not deliver an outcome")
	}
}

func TestOptionsDefaultsAndValidate(t *testing.T) {
	var o Options
	o.SetDefaults()
	if o.Compiler != DefaultCompiler || o.Converter != DefaultConverter {
		t.Errorf("defaults = %q, %q", o.Compiler, o.Converter)
	}
	if o.ScratchRoot == "" || o.Logger == nil {
		t.Error("ScratchRoot and Logger should be defaulted")
	}
	if err := o.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	o.Compiler = "pdflatex; echo"
	if err := o.Validate(); err == nil {
		t.Error("Validate should reject shell metacharacters")
	}
	o.Compiler = DefaultCompiler
	o.Timeout = -time.Second
	if err := o.Validate(); err == nil {
		t.Error("Validate should reject a negative timeout")
	}
}

func TestExecMissingTool(t *testing.T) {
	e := &Exec{Compiler: "latexify-no-such-compiler", Converter: "latexify-no-such-converter"}
	dir := t.TempDir()

	_, err := e.Compile(context.Background(), filepath.Join(dir, SourceFile), dir)
	if !errors.Is(err, errors.ErrCodeToolNotFound) {
		t.Errorf("Compile: expected TOOL_NOT_FOUND, got %v", err)
	}
	err = e.Convert(context.Background(), filepath.Join(dir, PDFFile), filepath.Join(dir, SVGFile))
	if !errors.Is(err, errors.ErrCodeToolNotFound) {
		t.Errorf("Convert: expected TOOL_NOT_FOUND, got %v", err)
	}
}

func TestExecNonZeroExit(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	e := &Exec{Compiler: "false", Converter: "false"}
	dir := t.TempDir()

	_, err := e.Compile(context.Background(), filepath.Join(dir, SourceFile), dir)
	pe, ok := errors.AsProcessError(err)
	if !ok {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if pe.ExitCode != 1 || pe.Stage != StageCompile {
		t.Errorf("ProcessError = %+v", pe)
	}
	if pe.Args[0] != "-interaction=nonstopmode" || pe.Args[1] != "-halt-on-error" {
		t.Errorf("compiler args = %v", pe.Args)
	}
}

func TestExecRestrictsTeXFileAccess(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-pdflatex")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nenv\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("openin_any", "a")
	e := &Exec{Compiler: script, Converter: DefaultConverter}

	_, err := e.Compile(context.Background(), filepath.Join(dir, SourceFile), dir)
	pe, ok := errors.AsProcessError(err)
	if !ok {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	for _, want := range []string{"openin_any=p", "openout_any=p", "shell_escape=f"} {
		if !strings.Contains(pe.Output, want+"\n") {
			t.Errorf("compiler environment missing %s:\n%s", want, pe.Output)
		}
	}
}

func TestExecRealToolchain(t *testing.T) {
	for _, tool := range []string{DefaultCompiler, DefaultConverter} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
	r := NewRunner(nil, nil, nil, Options{ScratchRoot: t.TempDir(), Timeout: 2 * time.Minute})
	res, err := r.Compile(context.Background(), "", Request{Content: `$x^2$`, Width: 100, Height: 50, FontSize: 10})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(string(res.SVG), "<svg") {
		t.Errorf("output is not an SVG: %.80s", res.SVG)
	}
}
