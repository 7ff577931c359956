package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/latexify/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load(missing) mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
template = "/opt/latex/eq.tex"
preamble = '\usepackage{bm}'
compiler = "xelatex"
font_size = 14
timeout = "45s"
keep_scratch = true

[cache]
backend = "redis"
redis_addr = "cache:6379"
redis_db = 2

[store]
backend = "mongo"
mongo_uri = "mongodb://db:27017"

[server]
addr = ":9000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()
	want.Template = "/opt/latex/eq.tex"
	want.Preamble = `\usepackage{bm}`
	want.Compiler = "xelatex"
	want.FontSize = 14
	want.Timeout = Duration{45 * time.Second}
	want.KeepScratch = true
	want.Cache.Backend = CacheRedis
	want.Cache.RedisAddr = "cache:6379"
	want.Cache.RedisDB = 2
	want.Store.Backend = StoreMongo
	want.Store.MongoURI = "mongodb://db:27017"
	want.Server.Addr = ":9000"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	opts := cfg.CompileOptions()
	if opts.Compiler != "xelatex" || opts.Converter != "pdf2svg" || opts.Timeout != 45*time.Second || !opts.KeepScratch {
		t.Errorf("CompileOptions() = %+v", opts)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", `compiler = `},
		{"unknown key", `colour = "red"`},
		{"bad duration", `timeout = "soon"`},
		{"negative timeout", `timeout = "-1s"`},
		{"zero font size", `font_size = 0`},
		{"cache backend", "[cache]\nbackend = \"memcached\""},
		{"store backend", "[store]\nbackend = \"sqlite\""},
		{"compiler metachar", `compiler = "pdflatex; rm -rf ~"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("Load() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestLoadExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg, err := Load(writeConfig(t, `template = "~/eq.tex"`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := filepath.Join(home, "eq.tex"); cfg.Template != want {
		t.Errorf("Template = %q, want %q", cfg.Template, want)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Timeout = Duration{2 * time.Minute}
	cfg.Cache.Backend = CacheNone

	text, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Load(writeConfig(t, text))
	if err != nil {
		t.Fatalf("Load(encoded): %v\n%s", err, text)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"config", Path, filepath.Join(home, ".config", AppName, "config.toml")},
		{"cache", CacheDir, filepath.Join(home, ".cache", AppName)},
		{"data", DataDir, filepath.Join(home, ".local", "share", AppName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPathsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")

	if got, _ := Path(); got != filepath.Join("/tmp/xdg-config", AppName, "config.toml") {
		t.Errorf("Path() = %q", got)
	}
	if got, _ := CacheDir(); got != filepath.Join("/tmp/xdg-cache", AppName) {
		t.Errorf("CacheDir() = %q", got)
	}
}
