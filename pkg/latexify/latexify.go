// Package latexify converts text layers to rendered LaTeX groups and back.
//
// A layer is in one of two states:
//
//   - Source: an editable text layer holding LaTeX content
//   - Rendered: a group built from the compiled SVG, annotated with an
//     Artifact that records the source text, font size and frame
//
// Toggle inspects the selection and performs the applicable transition.
// Every selection state is handled: anything other than exactly one text layer
// or one annotated group is refused with a message and no mutation.
//
// Source → Rendered is destructive only after compilation succeeded: the
// group is created, annotated, and the text layer deleted in that order, and
// a compile failure leaves the document exactly as it was.
package latexify

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/latexify/pkg/compile"
	"github.com/matzehuels/latexify/pkg/document"
	"github.com/matzehuels/latexify/pkg/errors"
	"github.com/matzehuels/latexify/pkg/observability"
	"github.com/matzehuels/latexify/pkg/svgsize"
)

// User-facing messages.
const (
	MsgSelectOne     = "Please select a TextField to LaTeXify."
	MsgSelectOnlyOne = "Please select only one TextField to LaTeXify."
	MsgWrongKind     = "Select a TextField or a LaTeXField."
	MsgCompiling     = "Compiling LaTeX..."
	MsgCompileFailed = "LaTeX compilation failed."
	MsgRendered      = "LaTeXify done."
	MsgReverted      = "Layer deTeXified."
)

// Direction names the state a transition ended in.
type Direction string

const (
	Rendered Direction = "rendered"
	Source   Direction = "source"
)

// Compiler produces SVG from a compile request. *compile.Runner implements it.
type Compiler interface {
	Compile(ctx context.Context, templateLocation string, req compile.Request) (*compile.Result, error)
}

// Config holds the values a conversion needs besides the selection.
type Config struct {
	// TemplateLocation is the LaTeX template path; empty uses the built-in one.
	TemplateLocation string

	// Preamble is inserted into the template's {{preamble}} placeholder.
	Preamble string

	// DefaultFontSize applies to text layers without a font size.
	DefaultFontSize float64
}

// Transition describes a completed conversion.
type Transition struct {
	Direction Direction
	From      document.Layer
	To        document.Layer
	Artifact  Artifact

	// Compile is set for Source → Rendered transitions.
	Compile *compile.Result
}

// Converter runs transitions against a Host.
type Converter struct {
	Host     document.Host
	Compiler Compiler
	Config   Config
	Logger   *log.Logger
}

// New creates a converter. A nil logger discards output.
func New(host document.Host, c Compiler, cfg Config, logger *log.Logger) *Converter {
	if cfg.DefaultFontSize <= 0 {
		cfg.DefaultFontSize = compile.DefaultFontSize
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Converter{Host: host, Compiler: c, Config: cfg, Logger: logger}
}

// Toggle converts the single selected layer to its other state.
func (c *Converter) Toggle(ctx context.Context) (*Transition, error) {
	obj, err := c.selection(ctx)
	if err != nil {
		c.refuse(ctx, err)
		return nil, err
	}
	switch o := obj.(type) {
	case SourceObject:
		return c.ToRendered(ctx, o)
	case RenderedObject:
		return c.ToSource(ctx, o)
	default:
		err := errors.New(errors.ErrCodeInternal, "unhandled object type %T", obj)
		c.refuse(ctx, err)
		return nil, err
	}
}

// selection classifies the current selection.
func (c *Converter) selection(ctx context.Context) (Object, error) {
	selected, err := c.Host.Selected(ctx)
	if err != nil {
		return nil, err
	}
	switch n := len(selected); {
	case n == 0:
		return nil, errors.New(errors.ErrCodePrecondition, MsgSelectOne)
	case n > 1:
		return nil, errors.New(errors.ErrCodePrecondition, MsgSelectOnlyOne)
	}

	obj, err := Classify(ctx, c.Host, selected[0])
	if err != nil {
		if errors.Is(err, errors.ErrCodePrecondition) || errors.Is(err, errors.ErrCodeMetadataMissing) {
			return nil, errors.Wrap(errors.GetCode(err), err, MsgWrongKind)
		}
		return nil, err
	}
	return obj, nil
}

// refuse reports a refused request to the user.
func (c *Converter) refuse(ctx context.Context, err error) {
	code := errors.GetCode(err)
	observability.Convert().OnRefused(ctx, string(code))
	c.Logger.Debug("conversion refused", "code", code, "err", err)
	if code == errors.ErrCodePrecondition || code == errors.ErrCodeMetadataMissing {
		c.Host.Message(errors.UserMessage(err))
		return
	}
	c.Host.Message(MsgWrongKind)
}

// ToRendered compiles a text layer and replaces it with a rendered group.
func (c *Converter) ToRendered(ctx context.Context, src SourceObject) (*Transition, error) {
	layer := src.Layer()
	fontSize := layer.FontSize
	if fontSize <= 0 {
		fontSize = c.Config.DefaultFontSize
	}
	a := Artifact{
		Content:  layer.Text,
		FontSize: fontSize,
		X:        layer.Frame.X,
		Y:        layer.Frame.Y,
		Width:    layer.Frame.Width,
		Height:   layer.Frame.Height,
	}

	c.Host.Message(MsgCompiling)
	start := time.Now()
	res, err := c.Compiler.Compile(ctx, c.Config.TemplateLocation, a.Request(c.Config.Preamble))
	if err != nil {
		c.Logger.Error("LaTeX compilation failed", "layer", layer.ID, "err", err)
		if errors.Is(err, errors.ErrCodeInvalidInput) {
			c.Host.Message(errors.UserMessage(err))
		} else {
			c.Host.Message(MsgCompileFailed)
		}
		return nil, err
	}

	fit := svgsize.Fit(res.SVG, svgsize.Size{Width: a.Width, Height: a.Height})
	group, err := c.Host.CreateGroup(ctx, document.GroupSpec{
		Name:   layer.Name,
		Parent: layer.Parent,
		SVG:    string(res.SVG),
		Frame:  document.Frame{X: a.X, Y: a.Y, Width: fit.Width, Height: fit.Height},
	})
	if err != nil {
		c.Host.Message(MsgCompileFailed)
		return nil, err
	}

	a.LayerID = group.ID
	if err := a.Save(ctx, c.Host); err != nil {
		c.rollback(ctx, group.ID)
		c.Host.Message(MsgCompileFailed)
		return nil, err
	}
	if err := c.replace(ctx, layer.ID, group.ID); err != nil {
		c.rollback(ctx, group.ID)
		c.Host.Message(MsgCompileFailed)
		return nil, err
	}

	observability.Convert().OnTransition(ctx, group.ID, string(Rendered))
	c.Logger.Info("rendered layer", "name", layer.Name, "duration", time.Since(start).Round(time.Millisecond), "cached", res.CacheHit)
	c.Host.Message(MsgRendered)
	return &Transition{Direction: Rendered, From: layer, To: group, Artifact: a, Compile: res}, nil
}

// ToSource replaces a rendered group with a text layer rebuilt from its
// artifact.
func (c *Converter) ToSource(ctx context.Context, obj RenderedObject) (*Transition, error) {
	group := obj.Layer()
	a := obj.Artifact

	text, err := c.Host.CreateText(ctx, document.TextSpec{
		Name:       group.Name,
		Parent:     group.Parent,
		Text:       a.Content,
		Frame:      a.Frame(),
		FontSize:   a.FontSize,
		FixedWidth: true,
	})
	if err != nil {
		return nil, err
	}
	if err := c.replace(ctx, group.ID, text.ID); err != nil {
		c.rollback(ctx, text.ID)
		return nil, err
	}

	observability.Convert().OnTransition(ctx, text.ID, string(Source))
	c.Logger.Info("reverted layer", "name", group.Name)
	c.Host.Message(MsgReverted)
	return &Transition{Direction: Source, From: group, To: text, Artifact: a}, nil
}

// replace selects created and then deletes old. On error old is still in
// the document and selected; the caller removes created.
func (c *Converter) replace(ctx context.Context, old, created string) error {
	if err := c.Host.Select(ctx, created); err != nil {
		return err
	}
	if err := c.Host.Delete(ctx, old); err != nil {
		if serr := c.Host.Select(ctx, old); serr != nil {
			c.Logger.Warn("restoring selection failed", "layer", old, "err", serr)
		}
		return err
	}
	return nil
}

// rollback removes a layer created by a transition that could not finish.
func (c *Converter) rollback(ctx context.Context, id string) {
	if err := c.Host.Delete(ctx, id); err != nil {
		c.Logger.Warn("rollback failed", "layer", id, "err", err)
	}
}
