package compile

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/matzehuels/latexify/pkg/errors"
)

// Toolchain runs the two external transformations.
// Exec is the production implementation; tests substitute fakes to inject
// failures.
type Toolchain interface {
	// Compile turns texPath into a PDF inside outDir and returns its path.
	Compile(ctx context.Context, texPath, outDir string) (string, error)

	// Convert turns pdfPath into an SVG file at svgPath.
	Convert(ctx context.Context, pdfPath, svgPath string) error
}

// texEnv confines TeX file access to the working directory tree: paranoid
// mode refuses absolute paths, dot files and parent directories for both
// \input and \openout, and shell escape stays off.
var texEnv = []string{
	"openin_any=p",
	"openout_any=p",
	"shell_escape=f",
}

// Exec shells out to pdflatex and pdf2svg (or configured replacements).
type Exec struct {
	Compiler  string
	Converter string
}

// NewExec returns an Exec toolchain using the executables from opts.
func NewExec(opts Options) *Exec {
	opts.SetDefaults()
	return &Exec{Compiler: opts.Compiler, Converter: opts.Converter}
}

// Compile runs the compiler non-interactively, halting on the first error.
func (e *Exec) Compile(ctx context.Context, texPath, outDir string) (string, error) {
	args := []string{
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-output-directory", outDir,
		texPath,
	}
	if err := run(ctx, StageCompile, e.Compiler, outDir, texEnv, args...); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(texPath), filepath.Ext(texPath))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", errors.Wrap(errors.ErrCodeExternalProcess, err, "%s produced no PDF", e.Compiler)
	}
	return pdfPath, nil
}

// Convert runs the PDF-to-SVG converter.
func (e *Exec) Convert(ctx context.Context, pdfPath, svgPath string) error {
	return run(ctx, StageConvert, e.Converter, filepath.Dir(svgPath), nil, pdfPath, svgPath)
}

// run executes name with args in dir, capturing combined output. env is
// appended to the inherited environment.
// A missing executable is TOOL_NOT_FOUND; a non-zero exit is EXTERNAL_PROCESS
// carrying a *errors.ProcessError.
func run(ctx context.Context, stage, name, dir string, env []string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return errors.Wrap(errors.ErrCodeToolNotFound, err, "%s not found; install a TeX distribution and pdf2svg", name)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = nil
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(errors.ErrCodeExternalProcess, ctxErr, "%s interrupted", name)
		}
		code := -1
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return errors.Wrap(errors.ErrCodeExternalProcess, &errors.ProcessError{
			Stage:    stage,
			Command:  name,
			Args:     args,
			ExitCode: code,
			Output:   out.String(),
			Err:      err,
		}, "%s failed", name)
	}
	return nil
}

var _ Toolchain = (*Exec)(nil)
