package latexify

import (
	"context"
	"math"
	"strconv"

	"github.com/matzehuels/latexify/pkg/compile"
	"github.com/matzehuels/latexify/pkg/document"
	"github.com/matzehuels/latexify/pkg/errors"
)

// Setting keys under which an Artifact is stored on its rendered layer.
const (
	KeyContent  = "latex-content"
	KeyFontSize = "latex-font-size"
	KeyX        = "latex-x"
	KeyY        = "latex-y"
	KeyWidth    = "latex-width"
	KeyHeight   = "latex-height"
)

// Artifact is the reconstruction metadata of a rendered layer: the source
// text and the exact geometry and font size of the text layer it replaced.
type Artifact struct {
	LayerID  string  `json:"layer_id"`
	Content  string  `json:"content"`
	FontSize float64 `json:"font_size"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// Frame returns the original text layer's frame.
func (a Artifact) Frame() document.Frame {
	return document.Frame{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
}

// Request returns the compile request that produced the artifact.
func (a Artifact) Request(preamble string) compile.Request {
	return compile.Request{
		Content:  a.Content,
		Width:    a.Width,
		Height:   a.Height,
		FontSize: a.FontSize,
		Preamble: preamble,
	}
}

// fields lists the artifact's settings in storage order.
func (a Artifact) fields() [][2]string {
	return [][2]string{
		{KeyContent, a.Content},
		{KeyFontSize, formatFloat(a.FontSize)},
		{KeyX, formatFloat(a.X)},
		{KeyY, formatFloat(a.Y)},
		{KeyWidth, formatFloat(a.Width)},
		{KeyHeight, formatFloat(a.Height)},
	}
}

// Save writes the six settings onto a.LayerID.
func (a Artifact) Save(ctx context.Context, s document.Settings) error {
	for _, kv := range a.fields() {
		if err := s.Set(ctx, a.LayerID, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// LoadArtifact reads the artifact stored on layerID. A missing key or a value
// that does not parse is METADATA_MISSING. Empty content is valid.
func LoadArtifact(ctx context.Context, s document.Settings, layerID string) (Artifact, error) {
	a := Artifact{LayerID: layerID}

	content, ok, err := s.Get(ctx, layerID, KeyContent)
	if err != nil {
		return Artifact{}, err
	}
	if !ok {
		return Artifact{}, errors.New(errors.ErrCodeMetadataMissing, "layer %s has no %s setting", layerID, KeyContent)
	}
	a.Content = content

	numbers := []struct {
		key      string
		dst      *float64
		positive bool
	}{
		{KeyFontSize, &a.FontSize, true},
		{KeyX, &a.X, false},
		{KeyY, &a.Y, false},
		{KeyWidth, &a.Width, true},
		{KeyHeight, &a.Height, true},
	}
	for _, n := range numbers {
		raw, ok, err := s.Get(ctx, layerID, n.key)
		if err != nil {
			return Artifact{}, err
		}
		if !ok {
			return Artifact{}, errors.New(errors.ErrCodeMetadataMissing, "layer %s has no %s setting", layerID, n.key)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Artifact{}, errors.Wrap(errors.ErrCodeMetadataMissing, err, "layer %s has a corrupt %s setting", layerID, n.key)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Artifact{}, errors.New(errors.ErrCodeMetadataMissing, "layer %s has a non-finite %s setting", layerID, n.key)
		}
		if n.positive && v <= 0 {
			return Artifact{}, errors.New(errors.ErrCodeMetadataMissing, "layer %s has a non-positive %s setting", layerID, n.key)
		}
		*n.dst = v
	}
	return a, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
