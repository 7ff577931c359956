package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	c := NoopCompileHooks{}
	c.OnCompileStart(ctx, "req")
	c.OnStageComplete(ctx, "req", "compile", time.Second, nil)
	c.OnCompileComplete(ctx, "req", time.Second, errors.New("x"))

	ch := NoopCacheHooks{}
	ch.OnCacheHit(ctx, "artifact")
	ch.OnCacheMiss(ctx, "artifact")
	ch.OnCacheSet(ctx, "artifact", 1024)

	cv := NoopConvertHooks{}
	cv.OnTransition(ctx, "layer", "rendered")
	cv.OnRefused(ctx, "PRECONDITION")
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Compile().(NoopCompileHooks); !ok {
		t.Error("Compile() should return NoopCompileHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := Convert().(NoopConvertHooks); !ok {
		t.Error("Convert() should return NoopConvertHooks by default")
	}

	hooks := NewLogHooks(log.New(&bytes.Buffer{}))
	hooks.Register()
	if Compile() != CompileHooks(hooks) || Cache() != CacheHooks(hooks) || Convert() != ConvertHooks(hooks) {
		t.Error("Register should install the hooks for every category")
	}

	Reset()
	if _, ok := Compile().(NoopCompileHooks); !ok {
		t.Error("Reset() should restore NoopCompileHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	hooks := NewLogHooks(nil)
	SetCompileHooks(hooks)
	SetCompileHooks(nil)
	if Compile() != CompileHooks(hooks) {
		t.Error("SetCompileHooks(nil) should keep the existing hooks")
	}
	SetCacheHooks(nil)
	SetConvertHooks(nil)
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("SetCacheHooks(nil) should be ignored")
	}
}

func TestLogHooksWriteDebugRecords(t *testing.T) {
	var buf bytes.Buffer
	l := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	h := NewLogHooks(l)
	ctx := context.Background()

	h.OnCompileStart(ctx, "req-1")
	h.OnStageComplete(ctx, "req-1", "convert", time.Millisecond, errors.New("boom"))
	h.OnCacheSet(ctx, "artifact", 42)
	h.OnRefused(ctx, "PRECONDITION")

	out := buf.String()
	for _, want := range []string{"compile started", "req-1", "stage failed", "boom", "cache set", "PRECONDITION"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
