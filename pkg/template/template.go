// Package template renders LaTeX source documents from mustache-style
// templates.
//
// A template references the fields width, height, document, preamble,
// fontSize and skipFontSize as {{name}}. Values are substituted literally:
// nothing is HTML- or TeX-escaped, so the template author decides how user
// content is quoted. Unknown or missing placeholders render as the empty
// string.
//
// Content that itself contains mustache delimiters is substituted as-is and
// is not re-interpreted, but a template that places {{ next to TeX braces
// (for example "{{{document}}}") is parsed as a triple mustache. Keep a space
// between TeX braces and placeholders.
package template

import (
	_ "embed"
	"os"
	"strconv"

	"github.com/cbroglie/mustache"

	"github.com/matzehuels/latexify/pkg/errors"
)

// Default is the built-in template used when no template location is
// configured.
//
//go:embed default.tex
var Default string

// Params holds the values substituted into a template.
type Params struct {
	Width        float64
	Height       float64
	FontSize     float64
	SkipFontSize float64
	Document     string
	Preamble     string
}

// View returns the mustache context for p. Numbers are formatted in their
// shortest form so 100 renders as "100", not "100.000000".
func (p Params) View() map[string]string {
	return map[string]string{
		"width":        formatNumber(p.Width),
		"height":       formatNumber(p.Height),
		"fontSize":     formatNumber(p.FontSize),
		"skipFontSize": formatNumber(p.SkipFontSize),
		"document":     p.Document,
		"preamble":     p.Preamble,
	}
}

// Render merges params into source and returns the LaTeX document.
func Render(source string, params Params) (string, error) {
	tmpl, err := mustache.ParseStringRaw(source, true)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeTemplateInvalid, err, "parse template")
	}
	out, err := tmpl.Render(params.View())
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeTemplateInvalid, err, "render template")
	}
	return out, nil
}

// Load reads a template from location. An empty location selects Default.
func Load(location string) (string, error) {
	if location == "" {
		return Default, nil
	}
	if err := errors.ValidateTemplatePath(location); err != nil {
		return "", err
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeTemplateRead, err, "read template %s", location)
	}
	return string(data), nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
