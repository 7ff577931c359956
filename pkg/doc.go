// Package pkg provides the core libraries for latexify.
//
// # Overview
//
// latexify renders LaTeX snippets to SVG through pdflatex and pdf2svg, and
// swaps the text layers of a design document for rendered LaTeX groups that
// remember their source. The pkg directory is organized into three areas:
//
//  1. Rendering: [template], [compile], [svgsize]
//  2. Conversion: [latexify], [document]
//  3. Infrastructure: [cache], [config], [errors], [observability], [buildinfo]
//
// # Architecture
//
// The data flow of a Source → Rendered conversion:
//
//	document.Host selection
//	         ↓
//	    [latexify] classifies the selected layer
//	         ↓
//	    [template] renders content into the LaTeX template
//	         ↓
//	    [compile] runs pdflatex and pdf2svg in a scratch directory
//	         ↓
//	    [svgsize] measures the SVG to fit the new group
//	         ↓
//	    group layer + six settings, text layer removed
//
// # Quick Start
//
// Compile a snippet:
//
//	runner := compile.NewRunner(nil, nil, logger, compile.Options{})
//	res, err := runner.Compile(ctx, "", compile.Request{
//	    Content:  `e^{i\pi} + 1 = 0`,
//	    Width:    200,
//	    Height:   50,
//	    FontSize: 12,
//	})
//	os.WriteFile("euler.svg", res.SVG, 0o644)
//
// Toggle the selected layer of a document:
//
//	host := document.NewHost(doc, &document.Messages{})
//	conv := latexify.New(host, runner, latexify.Config{}, logger)
//	tr, err := conv.Toggle(ctx)
//
// [template]: github.com/matzehuels/latexify/pkg/template
// [compile]: github.com/matzehuels/latexify/pkg/compile
// [svgsize]: github.com/matzehuels/latexify/pkg/svgsize
// [latexify]: github.com/matzehuels/latexify/pkg/latexify
// [document]: github.com/matzehuels/latexify/pkg/document
// [cache]: github.com/matzehuels/latexify/pkg/cache
// [config]: github.com/matzehuels/latexify/pkg/config
// [errors]: github.com/matzehuels/latexify/pkg/errors
// [observability]: github.com/matzehuels/latexify/pkg/observability
// [buildinfo]: github.com/matzehuels/latexify/pkg/buildinfo
package pkg
