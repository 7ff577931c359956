package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/latexify/pkg/document"
	"github.com/matzehuels/latexify/pkg/latexify"
)

// docCommand creates the document management command.
func (c *CLI) docCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Create and inspect documents",
		Long: `Manage the documents that toggle operates on.

A document argument is either a path ending in .json or the ID of a document
in the configured store (~/.local/share/latexify/documents by default).`,
	}

	cmd.AddCommand(c.docNewCommand())
	cmd.AddCommand(c.docAddTextCommand())
	cmd.AddCommand(c.docListCommand())
	cmd.AddCommand(c.docSelectCommand())
	cmd.AddCommand(c.docShowCommand())
	cmd.AddCommand(c.docPickCommand())
	cmd.AddCommand(c.docRemoveCommand())

	return cmd
}

// docNewCommand creates the "doc new" subcommand.
func (c *CLI) docNewCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create an empty document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc := document.New(args[0])

			var store document.Store
			if output != "" {
				fs, id, err := document.OpenPath(output)
				if err != nil {
					return err
				}
				doc.ID = id
				store = fs
			} else {
				cfg, err := c.loadConfig()
				if err != nil {
					return err
				}
				if store, err = openStore(ctx, cfg); err != nil {
					return err
				}
			}
			defer store.Close()

			if err := store.Save(ctx, doc); err != nil {
				return fmt.Errorf("save document: %w", err)
			}
			printSuccess("Created %s", StyleHighlight.Render(doc.Name))
			printKeyValue("ID", doc.ID)
			ref := doc.ID
			if output != "" {
				printFile(output)
				ref = output
			}
			printNextStep("Add a text layer", fmt.Sprintf("latexify doc add-text %s 'x^2'", ref))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this .json file instead of the store")
	return cmd
}

// docAddTextCommand creates the "doc add-text" subcommand.
func (c *CLI) docAddTextCommand() *cobra.Command {
	spec := document.TextSpec{Frame: document.Frame{Width: defaultWidth, Height: defaultHeight}}
	var selectIt bool

	cmd := &cobra.Command{
		Use:   "add-text <doc> [content|-]",
		Short: "Append a text layer",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			arg := ""
			if len(args) == 2 {
				arg = args[1]
			}
			text, err := readInput(arg, cmd.InOrStdin())
			if err != nil {
				return err
			}
			spec.Text = text

			return c.updateDocument(ctx, args[0], func(doc *document.Document) error {
				l, err := doc.CreateText(ctx, spec)
				if err != nil {
					return err
				}
				if selectIt {
					if err := doc.Select(ctx, l.ID); err != nil {
						return err
					}
				}
				printSuccess("Added text layer %s", StyleHighlight.Render(l.ID))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&spec.Name, "name", "", "layer name")
	cmd.Flags().StringVar(&spec.Parent, "parent", "", "parent layer or artboard ID")
	cmd.Flags().Float64Var(&spec.Frame.X, "x", 0, "x position")
	cmd.Flags().Float64Var(&spec.Frame.Y, "y", 0, "y position")
	cmd.Flags().Float64Var(&spec.Frame.Width, "width", spec.Frame.Width, "frame width")
	cmd.Flags().Float64Var(&spec.Frame.Height, "height", spec.Frame.Height, "frame height")
	cmd.Flags().Float64Var(&spec.FontSize, "font-size", 0, "font size (unset uses the configured default)")
	cmd.Flags().BoolVar(&selectIt, "select", false, "select the new layer")
	return cmd
}

// docListCommand creates the "doc list" subcommand.
func (c *CLI) docListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents in the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			docs, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				printInfo("No documents")
				printNextStep("Create one", "latexify doc new <name>")
				return nil
			}
			out := cmd.OutOrStdout()
			for _, d := range docs {
				fmt.Fprintf(out, "%s  %-24s %s\n", d.ID, d.Name, StyleDim.Render(formatAge(d.UpdatedAt)))
			}
			return nil
		},
	}
}

// docSelectCommand creates the "doc select" subcommand.
func (c *CLI) docSelectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "select <doc> [layer-id...]",
		Short: "Replace the selection (no IDs clears it)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.updateDocument(ctx, args[0], func(doc *document.Document) error {
				if err := doc.Select(ctx, args[1:]...); err != nil {
					return err
				}
				printSuccess("Selected %d layer(s)", len(doc.Selection))
				return nil
			})
		},
	}
}

// docShowCommand creates the "doc show" subcommand.
func (c *CLI) docShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <doc>",
		Short: "Print a document's layers and selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, doc, err := c.loadDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}
			writeDocument(cmd.OutOrStdout(), doc)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw document")
	return cmd
}

// docPickCommand creates the "doc pick" subcommand.
func (c *CLI) docPickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pick <doc>",
		Short: "Choose the selection interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.updateDocument(ctx, args[0], func(doc *document.Document) error {
				if len(doc.Layers) == 0 {
					return fmt.Errorf("document has no layers")
				}
				final, err := tea.NewProgram(NewLayerPickerModel(doc), tea.WithContext(ctx)).Run()
				if err != nil {
					return fmt.Errorf("layer picker: %w", err)
				}
				m := final.(LayerPickerModel)
				if !m.Confirmed {
					return errPickCancelled
				}
				if err := doc.Select(ctx, m.SelectedIDs()...); err != nil {
					return err
				}
				printSuccess("Selected %d layer(s)", len(doc.Selection))
				return nil
			})
		},
	}
}

// docRemoveCommand creates the "doc rm" subcommand.
func (c *CLI) docRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <doc>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, id, err := c.openDocument(ctx, args[0])
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Delete(ctx, id); err != nil {
				return err
			}
			printSuccess("Deleted %s", id)
			return nil
		},
	}
}

// errPickCancelled is returned by updateDocument callbacks to skip saving.
var errPickCancelled = errors.New("selection unchanged")

// updateDocument loads ref, applies fn and saves the result.
func (c *CLI) updateDocument(ctx context.Context, ref string, fn func(*document.Document) error) error {
	store, doc, err := c.loadDocument(ctx, ref)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := fn(doc); err != nil {
		if errors.Is(err, errPickCancelled) {
			printInfo("Cancelled")
			return nil
		}
		return err
	}
	return store.Save(ctx, doc)
}

// writeDocument prints doc as a human-readable listing.
func writeDocument(w io.Writer, doc *document.Document) {
	selected := make(map[string]bool, len(doc.Selection))
	for _, id := range doc.Selection {
		selected[id] = true
	}

	fmt.Fprintln(w, StyleTitle.Render(doc.Name)+" "+StyleDim.Render(doc.ID))
	if len(doc.Layers) == 0 {
		fmt.Fprintln(w, StyleDim.Render("  (no layers)"))
		return
	}
	for _, l := range doc.Layers {
		fmt.Fprintln(w, layerLine(l, selected[l.ID]))
		if text := layerText(doc, l); text != "" {
			fmt.Fprintln(w, "           "+StyleDim.Render(truncate(text, 60)))
		}
	}
}

// layerText returns the LaTeX shown under a layer: the text of a text layer
// or the stored source of a rendered group.
func layerText(doc *document.Document, l document.Layer) string {
	if l.Kind == document.KindText {
		return l.Text
	}
	if v, ok := doc.Settings[l.ID][latexify.KeyContent]; ok {
		return v
	}
	return ""
}

// formatAge formats t relative to now.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
