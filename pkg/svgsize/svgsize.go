// Package svgsize reads the intrinsic size of a compiled SVG so the image
// group that replaces a text layer can be fitted to its content.
package svgsize

import (
	"bytes"
	"fmt"

	"github.com/srwiley/oksvg"
)

// Size is an SVG's intrinsic width and height in user units.
type Size struct {
	Width  float64
	Height float64
}

// Measure parses svg and returns its viewBox size.
// Elements oksvg cannot draw (pdf2svg emits <symbol> and <use>) are ignored;
// only the root viewBox matters here.
func Measure(svg []byte) (Size, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return Size{}, fmt.Errorf("parse svg: %w", err)
	}
	size := Size{Width: icon.ViewBox.W, Height: icon.ViewBox.H}
	if size.Width <= 0 || size.Height <= 0 {
		return Size{}, fmt.Errorf("svg has no usable viewBox")
	}
	return size, nil
}

// Fit returns the measured size of svg, or fallback when it cannot be
// measured.
func Fit(svg []byte, fallback Size) Size {
	if s, err := Measure(svg); err == nil {
		return s
	}
	return fallback
}
