// Package compile turns LaTeX content into SVG through an external toolchain.
//
// The pipeline has three stages, each starting only after the previous one
// succeeded:
//
//  1. Render: merge the request into a template (see package template)
//  2. Compile: run pdflatex on the rendered source
//  3. Convert: run pdf2svg on the resulting PDF
//
// Every request gets its own scratch directory named after a fresh UUID, so
// concurrent compilations never share files. A failure in any stage fails the
// whole request; no partial output is returned and nothing is retried.
//
// # Usage
//
//	runner := compile.NewRunner(cache, nil, logger, compile.Options{})
//	result, err := runner.Compile(ctx, "template.tex", compile.Request{
//	    Content:  `$x^2$`,
//	    Width:    100,
//	    Height:   50,
//	    FontSize: 10,
//	})
//	if err != nil {
//	    return err
//	}
//	svg := result.SVG
package compile

import (
	"io"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/latexify/pkg/cache"
	"github.com/matzehuels/latexify/pkg/errors"
	"github.com/matzehuels/latexify/pkg/template"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultCompiler is the source-to-PDF compiler.
	DefaultCompiler = "pdflatex"

	// DefaultConverter is the PDF-to-SVG converter.
	DefaultConverter = "pdf2svg"

	// DefaultFontSize is used when a text layer carries no font size.
	DefaultFontSize = 10.0

	// skipFactor is the line-height ratio LaTeX uses for \fontsize.
	skipFactor = 1.2
)

// Scratch file names inside a request's scratch directory.
const (
	SourceFile = "content.tex"
	PDFFile    = "content.pdf"
	SVGFile    = "content.svg"
)

// Stage names reported in errors and hooks.
const (
	StageRender  = "render"
	StageCompile = "compile"
	StageConvert = "convert"
)

// =============================================================================
// Request
// =============================================================================

// Request describes one piece of content to compile.
type Request struct {
	Content  string  `json:"content"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"font_size"`
	Preamble string  `json:"preamble,omitempty"`
}

// Validate checks the numeric invariants. Empty content is allowed and
// produces an empty image.
func (r Request) Validate() error {
	if err := errors.ValidatePositive("width", r.Width); err != nil {
		return err
	}
	if err := errors.ValidatePositive("height", r.Height); err != nil {
		return err
	}
	return errors.ValidatePositive("font size", r.FontSize)
}

// SkipFontSize returns the baseline skip for a font size: round(size × 1.2).
func SkipFontSize(fontSize float64) float64 {
	return math.Round(fontSize * skipFactor)
}

// Params returns the template parameters for r, including the derived
// skip font size.
func (r Request) Params() template.Params {
	return template.Params{
		Width:        r.Width,
		Height:       r.Height,
		FontSize:     r.FontSize,
		SkipFontSize: SkipFontSize(r.FontSize),
		Document:     r.Content,
		Preamble:     r.Preamble,
	}
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures a Runner. The zero value is usable; defaults are applied
// by SetDefaults.
type Options struct {
	// Compiler and Converter name the executables (or absolute paths).
	Compiler  string
	Converter string

	// ScratchRoot is the parent of per-request scratch directories.
	// Defaults to os.TempDir().
	ScratchRoot string

	// KeepScratch leaves scratch directories in place for debugging.
	KeepScratch bool

	// Timeout bounds a whole compilation. Zero means no timeout.
	Timeout time.Duration

	// Refresh skips cache reads; the fresh result is still written.
	Refresh bool

	// Logger defaults to a discarding logger.
	Logger *log.Logger
}

// SetDefaults fills in unset fields.
func (o *Options) SetDefaults() {
	if o.Compiler == "" {
		o.Compiler = DefaultCompiler
	}
	if o.Converter == "" {
		o.Converter = DefaultConverter
	}
	if o.ScratchRoot == "" {
		o.ScratchRoot = os.TempDir()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks the configured executables and timeout.
func (o *Options) Validate() error {
	if err := errors.ValidateExecutable(o.Compiler); err != nil {
		return err
	}
	if err := errors.ValidateExecutable(o.Converter); err != nil {
		return err
	}
	if o.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "timeout cannot be negative")
	}
	return nil
}

// keyOpts returns the cache key inputs for req under these options.
func (o *Options) keyOpts(req Request) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Content:   req.Content,
		Preamble:  req.Preamble,
		Width:     req.Width,
		Height:    req.Height,
		FontSize:  req.FontSize,
		Compiler:  o.Compiler,
		Converter: o.Converter,
	}
}

// =============================================================================
// Result
// =============================================================================

// Result contains the outputs of one compilation.
type Result struct {
	// RequestID identifies the request in logs and names its scratch directory.
	RequestID string

	// SVG is the converted image.
	SVG []byte

	// Source is the rendered LaTeX document. Empty on a cache hit.
	Source string

	// ScratchDir is set only when KeepScratch is enabled.
	ScratchDir string

	// CacheHit reports whether SVG came from the cache.
	CacheHit bool

	Stats Stats
}

// Stats contains per-stage timings.
type Stats struct {
	RenderTime  time.Duration
	CompileTime time.Duration
	ConvertTime time.Duration
	Total       time.Duration
}

// Outcome is the value delivered by CompileAsync.
type Outcome struct {
	Result *Result
	Err    error
}
