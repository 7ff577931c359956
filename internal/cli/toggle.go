package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/latexify/pkg/document"
	"github.com/matzehuels/latexify/pkg/latexify"
)

// toggleCommand creates the toggle command.
func (c *CLI) toggleCommand() *cobra.Command {
	var selectIDs []string
	var noCache bool

	cmd := &cobra.Command{
		Use:   "toggle <doc.json|id>",
		Short: "Convert the selected layer between text and rendered LaTeX",
		Long: `Toggle converts the single selected layer of a document.

A text layer is compiled and replaced by a LaTeX group carrying its source.
A LaTeX group is replaced by the text layer it was rendered from.

The document is saved only when the conversion succeeds.`,
		Example: `  latexify toggle drawing.json
  latexify toggle drawing.json --select 3f2a...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runToggle(cmd.Context(), args[0], selectIDs, noCache)
		},
	}

	cmd.Flags().StringSliceVarP(&selectIDs, "select", "s", nil, "select these layer IDs before toggling")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the artifact cache")

	return cmd
}

func (c *CLI) runToggle(ctx context.Context, ref string, selectIDs []string, noCache bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	store, doc, err := c.loadDocument(ctx, ref)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(selectIDs) > 0 {
		if err := doc.Select(ctx, selectIDs...); err != nil {
			return fmt.Errorf("select: %w", err)
		}
	}

	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return err
	}
	defer runner.Cache.Close()

	host := document.NewHost(doc, uiNotifier{logger: c.Logger})
	conv := latexify.New(host, runner, converterConfig(cfg), c.Logger)
	tr, err := conv.Toggle(ctx)
	if err != nil {
		if len(selectIDs) > 0 {
			// Keep the requested selection even though nothing was converted.
			if serr := store.Save(ctx, doc); serr != nil {
				c.Logger.Warn("save selection", "err", serr)
			}
		}
		return err
	}

	if err := store.Save(ctx, doc); err != nil {
		return fmt.Errorf("save %s: %w", ref, err)
	}

	switch tr.Direction {
	case latexify.Rendered:
		printDetail("%q → LaTeX group %s", truncate(tr.Artifact.Content, 40), tr.To.ID)
		if tr.Compile != nil && tr.Compile.CacheHit {
			printDetail("SVG served from cache")
		}
	case latexify.Source:
		printDetail("LaTeX group → text layer %s", tr.To.ID)
	}
	return nil
}
