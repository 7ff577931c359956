package latexify

import (
	"context"

	"github.com/matzehuels/latexify/pkg/document"
	"github.com/matzehuels/latexify/pkg/errors"
)

// Object is a layer classified for conversion. It is either a SourceObject
// or a RenderedObject; every other layer is rejected by Classify.
type Object interface {
	Layer() document.Layer
	isObject()
}

// SourceObject is an editable text layer.
type SourceObject struct {
	layer document.Layer
}

// Layer returns the underlying text layer.
func (o SourceObject) Layer() document.Layer { return o.layer }
func (SourceObject) isObject()               {}

// RenderedObject is a group layer that carries a complete Artifact.
type RenderedObject struct {
	layer    document.Layer
	Artifact Artifact
}

// Layer returns the underlying group layer.
func (o RenderedObject) Layer() document.Layer { return o.layer }
func (RenderedObject) isObject()               {}

// Classify discriminates layer into a SourceObject or a RenderedObject.
// Groups without complete metadata yield METADATA_MISSING; any other kind
// yields PRECONDITION.
func Classify(ctx context.Context, s document.Settings, layer document.Layer) (Object, error) {
	switch layer.Kind {
	case document.KindText:
		return SourceObject{layer: layer}, nil
	case document.KindGroup:
		a, err := LoadArtifact(ctx, s, layer.ID)
		if err != nil {
			return nil, err
		}
		return RenderedObject{layer: layer, Artifact: a}, nil
	default:
		return nil, errors.New(errors.ErrCodePrecondition, "layer %s is neither a text layer nor a LaTeX group", layer.ID)
	}
}
