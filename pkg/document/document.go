// Package document models the design document that latexify operates on.
//
// A design tool owns the real layer tree, the selection, per-layer key-value
// settings and the toast area. latexify only talks to them through the Host
// interface defined here, so the conversion logic runs unchanged against the
// in-memory Document (tests, HTTP requests), a JSON file (CLI) or MongoDB.
//
// A Document is not safe for concurrent use. Stores serialize access to the
// persisted copies.
package document

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/matzehuels/latexify/pkg/errors"
)

// Kind discriminates the shapes a layer can take.
type Kind string

const (
	// KindText is an editable text layer.
	KindText Kind = "text"

	// KindGroup is a group of vector shapes, such as an imported SVG.
	KindGroup Kind = "group"

	// KindOther covers every layer latexify does not handle (shapes, images).
	KindOther Kind = "other"
)

// Frame is a layer's position and size in its parent's coordinates.
type Frame struct {
	X      float64 `json:"x" bson:"x"`
	Y      float64 `json:"y" bson:"y"`
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

// Layer is one node of the document.
// Text and FontSize apply to text layers, SVG to groups.
type Layer struct {
	ID         string  `json:"id" bson:"id"`
	Name       string  `json:"name" bson:"name"`
	Parent     string  `json:"parent,omitempty" bson:"parent,omitempty"`
	Kind       Kind    `json:"kind" bson:"kind"`
	Frame      Frame   `json:"frame" bson:"frame"`
	Text       string  `json:"text,omitempty" bson:"text,omitempty"`
	FontSize   float64 `json:"font_size,omitempty" bson:"font_size,omitempty"`
	FixedWidth bool    `json:"fixed_width,omitempty" bson:"fixed_width,omitempty"`
	SVG        string  `json:"svg,omitempty" bson:"svg,omitempty"`
}

// TextSpec describes a text layer to create.
type TextSpec struct {
	Name       string
	Parent     string
	Text       string
	Frame      Frame
	FontSize   float64
	FixedWidth bool
}

// GroupSpec describes a group layer built from SVG content.
type GroupSpec struct {
	Name   string
	Parent string
	SVG    string
	Frame  Frame
}

// =============================================================================
// Host interfaces
// =============================================================================

// Layers reads and mutates the layer tree and the selection.
type Layers interface {
	Selected(ctx context.Context) ([]Layer, error)
	Layer(ctx context.Context, id string) (Layer, error)
	CreateText(ctx context.Context, spec TextSpec) (Layer, error)
	CreateGroup(ctx context.Context, spec GroupSpec) (Layer, error)
	Delete(ctx context.Context, id string) error
	Select(ctx context.Context, ids ...string) error
}

// Settings is the flat per-layer key-value bag.
type Settings interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, layerID, key string) (string, bool, error)
	Set(ctx context.Context, layerID, key, value string) error
}

// Notifier shows short messages to the user. Calls are fire-and-forget.
type Notifier interface {
	Message(text string)
}

// Host is everything the converter needs from the design tool.
type Host interface {
	Layers
	Settings
	Notifier
}

// =============================================================================
// Document
// =============================================================================

// Document is an in-memory layer tree with a selection and per-layer
// settings. It implements Layers and Settings.
type Document struct {
	ID        string                       `json:"id" bson:"_id"`
	Name      string                       `json:"name" bson:"name"`
	Layers    []Layer                      `json:"layers" bson:"layers"`
	Selection []string                     `json:"selection" bson:"selection"`
	Settings  map[string]map[string]string `json:"settings,omitempty" bson:"settings,omitempty"`
	UpdatedAt time.Time                    `json:"updated_at" bson:"updated_at"`
}

// New creates an empty document.
func New(name string) *Document {
	return &Document{
		ID:        uuid.NewString(),
		Name:      name,
		Layers:    []Layer{},
		Selection: []string{},
		Settings:  map[string]map[string]string{},
		UpdatedAt: time.Now().UTC(),
	}
}

// Selected returns the selected layers in selection order.
func (d *Document) Selected(ctx context.Context) ([]Layer, error) {
	out := make([]Layer, 0, len(d.Selection))
	for _, id := range d.Selection {
		l, err := d.Layer(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// Layer returns the layer with the given id.
func (d *Document) Layer(_ context.Context, id string) (Layer, error) {
	l, ok := lo.Find(d.Layers, func(l Layer) bool { return l.ID == id })
	if !ok {
		return Layer{}, errors.New(errors.ErrCodeNotFound, "layer %s not found", id)
	}
	return l, nil
}

// CreateText appends a text layer.
func (d *Document) CreateText(_ context.Context, spec TextSpec) (Layer, error) {
	l := Layer{
		ID:         uuid.NewString(),
		Name:       spec.Name,
		Parent:     spec.Parent,
		Kind:       KindText,
		Frame:      spec.Frame,
		Text:       spec.Text,
		FontSize:   spec.FontSize,
		FixedWidth: spec.FixedWidth,
	}
	d.Layers = append(d.Layers, l)
	d.touch()
	return l, nil
}

// CreateGroup appends a group layer holding SVG content.
func (d *Document) CreateGroup(_ context.Context, spec GroupSpec) (Layer, error) {
	l := Layer{
		ID:     uuid.NewString(),
		Name:   spec.Name,
		Parent: spec.Parent,
		Kind:   KindGroup,
		Frame:  spec.Frame,
		SVG:    spec.SVG,
	}
	d.Layers = append(d.Layers, l)
	d.touch()
	return l, nil
}

// Add appends a layer as-is, assigning an ID when it has none.
// It is used when importing layers that latexify did not create.
func (d *Document) Add(l Layer) Layer {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Kind == "" {
		l.Kind = KindOther
	}
	d.Layers = append(d.Layers, l)
	d.touch()
	return l
}

// Delete removes a layer together with its settings and drops it from the
// selection.
func (d *Document) Delete(_ context.Context, id string) error {
	n := len(d.Layers)
	d.Layers = lo.Filter(d.Layers, func(l Layer, _ int) bool { return l.ID != id })
	if len(d.Layers) == n {
		return errors.New(errors.ErrCodeNotFound, "layer %s not found", id)
	}
	delete(d.Settings, id)
	d.Selection = lo.Without(d.Selection, id)
	d.touch()
	return nil
}

// Select replaces the selection. Every id must name an existing layer.
func (d *Document) Select(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := d.Layer(ctx, id); err != nil {
			return err
		}
	}
	d.Selection = lo.Uniq(ids)
	d.touch()
	return nil
}

// Get implements Settings.
func (d *Document) Get(_ context.Context, layerID, key string) (string, bool, error) {
	v, ok := d.Settings[layerID][key]
	return v, ok, nil
}

// Set implements Settings. The layer must exist.
func (d *Document) Set(ctx context.Context, layerID, key, value string) error {
	if _, err := d.Layer(ctx, layerID); err != nil {
		return err
	}
	if d.Settings == nil {
		d.Settings = map[string]map[string]string{}
	}
	if d.Settings[layerID] == nil {
		d.Settings[layerID] = map[string]string{}
	}
	d.Settings[layerID][key] = value
	d.touch()
	return nil
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	c := *d
	c.Layers = append([]Layer(nil), d.Layers...)
	c.Selection = append([]string(nil), d.Selection...)
	c.Settings = make(map[string]map[string]string, len(d.Settings))
	for id, bag := range d.Settings {
		c.Settings[id] = lo.Assign(bag)
	}
	return &c
}

func (d *Document) touch() {
	d.UpdatedAt = time.Now().UTC()
}

var (
	_ Layers   = (*Document)(nil)
	_ Settings = (*Document)(nil)
)
