package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks implements every hook interface by writing debug records to a
// logger. The CLI and the server register it when running verbosely.
type LogHooks struct {
	Logger *log.Logger
}

// NewLogHooks returns hooks that log through l.
func NewLogHooks(l *log.Logger) *LogHooks {
	if l == nil {
		l = log.Default()
	}
	return &LogHooks{Logger: l}
}

// Register installs h for compile, cache and conversion events.
func (h *LogHooks) Register() {
	SetCompileHooks(h)
	SetCacheHooks(h)
	SetConvertHooks(h)
}

func (h *LogHooks) OnCompileStart(_ context.Context, requestID string) {
	h.Logger.Debug("compile started", "request", requestID)
}

func (h *LogHooks) OnStageComplete(_ context.Context, requestID, stage string, d time.Duration, err error) {
	if err != nil {
		h.Logger.Debug("stage failed", "request", requestID, "stage", stage, "duration", d, "err", err)
		return
	}
	h.Logger.Debug("stage complete", "request", requestID, "stage", stage, "duration", d)
}

func (h *LogHooks) OnCompileComplete(_ context.Context, requestID string, d time.Duration, err error) {
	h.Logger.Debug("compile finished", "request", requestID, "duration", d, "ok", err == nil)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnTransition(_ context.Context, layerID, to string) {
	h.Logger.Debug("layer converted", "layer", layerID, "to", to)
}

func (h *LogHooks) OnRefused(_ context.Context, code string) {
	h.Logger.Debug("conversion refused", "code", code)
}

var (
	_ CompileHooks = (*LogHooks)(nil)
	_ CacheHooks   = (*LogHooks)(nil)
	_ ConvertHooks = (*LogHooks)(nil)
)
