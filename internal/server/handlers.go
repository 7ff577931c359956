package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/latexify/pkg/buildinfo"
	"github.com/matzehuels/latexify/pkg/compile"
	"github.com/matzehuels/latexify/pkg/document"
	"github.com/matzehuels/latexify/pkg/errors"
	"github.com/matzehuels/latexify/pkg/latexify"
)

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Get()})
}

// CompileRequest is the body of POST /api/v1/compile.
type CompileRequest struct {
	Content  string  `json:"content"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"font_size"`
	Preamble string  `json:"preamble,omitempty"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var body CompileRequest
	if err := decode(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.FontSize == 0 {
		body.FontSize = s.config.DefaultFontSize
	}
	if body.Preamble == "" {
		body.Preamble = s.config.Preamble
	}

	res, err := s.compiler.Compile(r.Context(), s.config.TemplateLocation, compile.Request{
		Content:  body.Content,
		Width:    body.Width,
		Height:   body.Height,
		FontSize: body.FontSize,
		Preamble: body.Preamble,
	})
	if err != nil {
		s.logger.Warn("compile failed", "err", err)
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("X-Latexify-Cache", strconv.FormatBool(res.CacheHit))
	w.Header().Set("X-Latexify-Request", res.RequestID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.SVG)
}

// ToggleRequest is the body of POST /api/v1/toggle. When Selection is set
// it replaces the document's selection before the toggle.
type ToggleRequest struct {
	Document  *document.Document `json:"document"`
	Selection []string           `json:"selection,omitempty"`
}

// ToggleResponse carries the document after the toggle and every message
// the converter emitted. Code is set when the toggle was refused or failed;
// the document is then unchanged.
type ToggleResponse struct {
	Document  *document.Document `json:"document"`
	Messages  []string           `json:"messages"`
	Direction latexify.Direction `json:"direction,omitempty"`
	Code      errors.Code        `json:"code,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var body ToggleRequest
	if err := decode(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.Document == nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "document is required"))
		return
	}
	doc := body.Document
	if body.Selection != nil {
		if err := doc.Select(r.Context(), body.Selection...); err != nil {
			s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid selection"))
			return
		}
	}

	msgs := &document.Messages{}
	notify := document.Tee{msgs, document.LogNotifier{Logger: s.logger.With("request", middleware.GetReqID(r.Context()))}}
	conv := latexify.New(document.NewHost(doc, notify), s.compiler, s.config, s.logger)
	tr, err := conv.Toggle(r.Context())

	resp := ToggleResponse{Document: doc, Messages: msgs.All()}
	if resp.Messages == nil {
		resp.Messages = []string{}
	}
	if err != nil {
		resp.Code = errors.GetCode(err)
		if resp.Code == "" {
			resp.Code = errors.ErrCodeInternal
		}
		resp.Error = errors.UserMessage(err)
		writeJSON(w, statusFor(resp.Code), resp)
		return
	}
	resp.Direction = tr.Direction
	writeJSON(w, http.StatusOK, resp)
}
