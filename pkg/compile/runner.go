package compile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/latexify/pkg/cache"
	"github.com/matzehuels/latexify/pkg/errors"
	"github.com/matzehuels/latexify/pkg/observability"
	"github.com/matzehuels/latexify/pkg/template"
)

// Runner encapsulates pipeline execution with caching.
// The CLI, the HTTP server and the layer converter share one Runner.
//
// A Runner holds no per-request state, so multiple goroutines can compile
// through the same Runner concurrently.
type Runner struct {
	Cache     cache.Cache
	Keyer     cache.Keyer
	Toolchain Toolchain
	Logger    *log.Logger
	Options   Options
}

// NewRunner creates a runner.
// If c is nil, a NullCache is used (caching disabled).
// If tc is nil, the Exec toolchain configured by opts is used.
func NewRunner(c cache.Cache, tc Toolchain, logger *log.Logger, opts Options) *Runner {
	if logger != nil {
		opts.Logger = logger
	}
	opts.SetDefaults()
	if c == nil {
		c = cache.NewNullCache()
	}
	if tc == nil {
		tc = NewExec(opts)
	}
	return &Runner{
		Cache:     c,
		Keyer:     cache.NewDefaultKeyer(),
		Toolchain: tc,
		Logger:    opts.Logger,
		Options:   opts,
	}
}

// Compile reads the template at templateLocation, renders req into it and runs
// the toolchain. An empty templateLocation selects the built-in template.
func (r *Runner) Compile(ctx context.Context, templateLocation string, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := r.Options.Validate(); err != nil {
		return nil, err
	}
	source, err := template.Load(templateLocation)
	if err != nil {
		return nil, err
	}
	return r.CompileSource(ctx, source, req)
}

// CompileSource is Compile with the template text already loaded.
func (r *Runner) CompileSource(ctx context.Context, templateSource string, req Request) (result *Result, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if r.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Options.Timeout)
		defer cancel()
	}

	id := uuid.NewString()
	start := time.Now()
	hooks := observability.Compile()
	hooks.OnCompileStart(ctx, id)
	defer func() {
		hooks.OnCompileComplete(ctx, id, time.Since(start), err)
	}()

	logger := r.Logger.With("request", id[:8])
	key := r.Keyer.ArtifactKey(cache.Hash([]byte(templateSource)), r.Options.keyOpts(req))

	if !r.Options.Refresh {
		if svg, hit, cerr := r.Cache.Get(ctx, key); cerr == nil && hit {
			observability.Cache().OnCacheHit(ctx, "artifact")
			logger.Debug("artifact cache hit")
			return &Result{
				RequestID: id,
				SVG:       svg,
				CacheHit:  true,
				Stats:     Stats{Total: time.Since(start)},
			}, nil
		} else if cerr != nil {
			logger.Warn("artifact cache read failed", "err", cerr)
		}
		observability.Cache().OnCacheMiss(ctx, "artifact")
	}

	result = &Result{RequestID: id}

	// Stage 1: Render
	stageStart := time.Now()
	result.Source, err = template.Render(templateSource, req.Params())
	result.Stats.RenderTime = time.Since(stageStart)
	hooks.OnStageComplete(ctx, id, StageRender, result.Stats.RenderTime, err)
	if err != nil {
		return nil, err
	}

	dir, err := r.scratchDir(id)
	if err != nil {
		return nil, err
	}
	if r.Options.KeepScratch {
		result.ScratchDir = dir
		logger.Debug("keeping scratch directory", "dir", dir)
	} else {
		defer os.RemoveAll(dir)
	}

	texPath := filepath.Join(dir, SourceFile)
	if err := os.WriteFile(texPath, []byte(result.Source), 0o644); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "write %s", SourceFile)
	}

	// Stage 2: Compile
	stageStart = time.Now()
	pdfPath, err := r.Toolchain.Compile(ctx, texPath, dir)
	result.Stats.CompileTime = time.Since(stageStart)
	hooks.OnStageComplete(ctx, id, StageCompile, result.Stats.CompileTime, err)
	if err != nil {
		logger.Debug("compile failed", "err", err)
		return nil, err
	}
	logger.Debug("compiled", "pdf", filepath.Base(pdfPath), "duration", result.Stats.CompileTime)

	// Stage 3: Convert
	svgPath := filepath.Join(dir, SVGFile)
	stageStart = time.Now()
	err = r.Toolchain.Convert(ctx, pdfPath, svgPath)
	result.Stats.ConvertTime = time.Since(stageStart)
	hooks.OnStageComplete(ctx, id, StageConvert, result.Stats.ConvertTime, err)
	if err != nil {
		logger.Debug("convert failed", "err", err)
		return nil, err
	}

	result.SVG, err = os.ReadFile(svgPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExternalProcess, err, "read %s", SVGFile)
	}
	result.Stats.Total = time.Since(start)

	if err := r.Cache.Set(ctx, key, result.SVG, cache.TTLArtifact); err != nil {
		logger.Warn("artifact cache write failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "artifact", len(result.SVG))
	}

	logger.Info("compiled LaTeX",
		"bytes", len(result.SVG),
		"compile", result.Stats.CompileTime.Round(time.Millisecond),
		"convert", result.Stats.ConvertTime.Round(time.Millisecond))
	return result, nil
}

// CompileAsync runs Compile in a goroutine and delivers exactly one Outcome
// on the returned channel.
func (r *Runner) CompileAsync(ctx context.Context, templateLocation string, req Request) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		res, err := r.Compile(ctx, templateLocation, req)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}

// scratchDir creates <ScratchRoot>/latexify-<id>.
func (r *Runner) scratchDir(id string) (string, error) {
	dir := filepath.Join(r.Options.ScratchRoot, fmt.Sprintf("latexify-%s", id))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "create scratch directory")
	}
	return dir, nil
}
