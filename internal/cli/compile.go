package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/latexify/pkg/compile"
	"github.com/matzehuels/latexify/pkg/errors"
	"github.com/matzehuels/latexify/pkg/observability"
	"github.com/matzehuels/latexify/pkg/svgsize"
)

const (
	defaultWidth  = 400 // default paper width in points
	defaultHeight = 100 // default paper height in points
)

// compileOpts holds the command-line flags for the compile command.
type compileOpts struct {
	output      string  // output file; stdout when empty
	width       float64 // paper width in points
	height      float64 // paper height in points
	fontSize    float64 // font size in points; config default when zero
	preamble    string  // extra preamble lines
	template    string  // template file; config or built-in when empty
	noCache     bool    // skip the artifact cache entirely
	refresh     bool    // ignore cached artifacts but store the new one
	keepScratch bool    // keep the scratch directory for inspection
}

// compileCommand creates the compile command.
func (c *CLI) compileCommand() *cobra.Command {
	opts := compileOpts{width: defaultWidth, height: defaultHeight}

	cmd := &cobra.Command{
		Use:   "compile [content|-]",
		Short: "Compile a LaTeX snippet to SVG",
		Long: `Compile renders content into the LaTeX template, runs pdflatex and pdf2svg
in a private scratch directory, and writes the resulting SVG.

Content is read from stdin when the argument is "-" or missing.`,
		Example: `  latexify compile 'e^{i\pi} + 1 = 0' -o euler.svg
  echo '\int_0^1 x\,dx' | latexify compile --font-size 14 > integral.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) == 1 {
				arg = args[0]
			}
			content, err := readInput(arg, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return c.runCompile(cmd.Context(), content, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().Float64Var(&opts.width, "width", opts.width, "paper width in points")
	cmd.Flags().Float64Var(&opts.height, "height", opts.height, "paper height in points")
	cmd.Flags().Float64Var(&opts.fontSize, "font-size", 0, "font size in points (default from config)")
	cmd.Flags().StringVar(&opts.preamble, "preamble", "", "extra preamble, e.g. '\\usepackage{bm}'")
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "LaTeX template file")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompile even when a cached artifact exists")
	cmd.Flags().BoolVar(&opts.keepScratch, "keep-scratch", false, "keep the scratch directory")

	return cmd
}

func (c *CLI) runCompile(ctx context.Context, content string, opts compileOpts, stdout io.Writer) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.fontSize == 0 {
		opts.fontSize = cfg.FontSize
	}
	if opts.preamble == "" {
		opts.preamble = cfg.Preamble
	}
	if opts.template == "" {
		opts.template = cfg.Template
	}
	cfg.KeepScratch = cfg.KeepScratch || opts.keepScratch

	runner, err := c.newRunner(ctx, cfg, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Cache.Close()
	runner.Options.Refresh = opts.refresh

	spinner := newSpinnerWithContext(ctx, "Compiling LaTeX...")
	previous := observability.Compile()
	observability.SetCompileHooks(spinnerHooks{spinner: spinner})
	defer observability.SetCompileHooks(previous)
	spinner.Start()

	res, err := runner.Compile(ctx, opts.template, compile.Request{
		Content:  content,
		Width:    opts.width,
		Height:   opts.height,
		FontSize: opts.fontSize,
		Preamble: opts.preamble,
	})
	if err != nil {
		spinner.StopWithError("LaTeX compilation failed")
		if pe, ok := errors.AsProcessError(err); ok {
			printDetail("%s exited with status %d", pe.Command, pe.ExitCode)
			c.Logger.Debug("tool output", "stage", pe.Stage, "output", pe.Output)
		}
		return err
	}
	spinner.Stop()

	if opts.output == "" {
		_, err = stdout.Write(res.SVG)
		return err
	}
	if err := os.WriteFile(opts.output, res.SVG, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	printSuccess("Compiled LaTeX")
	printCompileStats(res.Stats, len(res.SVG), res.CacheHit)
	if size, err := svgsize.Measure(res.SVG); err == nil {
		printDetail("%gpt × %gpt", size.Width, size.Height)
	}
	printFile(opts.output)
	if res.ScratchDir != "" {
		printDetail("Scratch: %s", res.ScratchDir)
	}
	return nil
}

// spinnerHooks reports pipeline stages on the spinner.
type spinnerHooks struct {
	observability.NoopCompileHooks
	spinner *Spinner
}

func (h spinnerHooks) OnStageComplete(_ context.Context, _, stage string, _ time.Duration, err error) {
	if err != nil {
		return
	}
	switch stage {
	case compile.StageRender:
		h.spinner.SetMessage("Running pdflatex...")
	case compile.StageCompile:
		h.spinner.SetMessage("Running pdf2svg...")
	}
}
