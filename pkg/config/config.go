// Package config loads latexify settings from a TOML file.
//
// Settings are resolved in three layers: built-in defaults, then the config
// file, then command-line flags. The file lives at
// $XDG_CONFIG_HOME/latexify/config.toml (default ~/.config/latexify/config.toml)
// and every key is optional:
//
//	template = "~/latex/equation.tex"
//	preamble = '\usepackage{bm}'
//	compiler = "pdflatex"
//	converter = "pdf2svg"
//	font_size = 12
//	timeout = "30s"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//
//	[store]
//	backend = "mongo"
//	mongo_uri = "mongodb://localhost:27017"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/latexify/pkg/compile"
	"github.com/matzehuels/latexify/pkg/errors"
)

// AppName names the XDG subdirectories.
const AppName = "latexify"

// Backend names.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"

	StoreFile  = "file"
	StoreMongo = "mongo"
)

// DefaultServerAddr is the listen address of `latexify serve`.
const DefaultServerAddr = "127.0.0.1:8080"

// Config is the full set of user settings.
type Config struct {
	Template    string   `toml:"template"`
	Preamble    string   `toml:"preamble"`
	Compiler    string   `toml:"compiler"`
	Converter   string   `toml:"converter"`
	FontSize    float64  `toml:"font_size"`
	Timeout     Duration `toml:"timeout"`
	KeepScratch bool     `toml:"keep_scratch"`
	ScratchDir  string   `toml:"scratch_dir"`

	Cache  CacheConfig  `toml:"cache"`
	Store  StoreConfig  `toml:"store"`
	Server ServerConfig `toml:"server"`
}

// CacheConfig selects the artifact cache backend.
type CacheConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Duration is a time.Duration written as a string ("30s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Compiler:  compile.DefaultCompiler,
		Converter: compile.DefaultConverter,
		FontSize:  compile.DefaultFontSize,
		Cache:     CacheConfig{Backend: CacheFile, RedisAddr: "localhost:6379"},
		Store:     StoreConfig{Backend: StoreFile, MongoURI: "mongodb://localhost:27017", MongoDatabase: AppName},
		Server:    ServerConfig{Addr: DefaultServerAddr},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, errors.New(errors.ErrCodeInvalidInput, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Template = expandHome(cfg.Template)
	return cfg, cfg.Validate()
}

// Validate checks backend names and numeric ranges.
func (c Config) Validate() error {
	if err := errors.ValidatePositive("font_size", c.FontSize); err != nil {
		return err
	}
	for _, exe := range []string{c.Compiler, c.Converter} {
		if err := errors.ValidateExecutable(exe); err != nil {
			return err
		}
	}
	if c.Timeout.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "timeout must not be negative")
	}
	switch c.Cache.Backend {
	case CacheFile, CacheRedis, CacheNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case StoreFile, StoreMongo:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// CompileOptions maps the config onto pipeline options.
func (c Config) CompileOptions() compile.Options {
	return compile.Options{
		Compiler:    c.Compiler,
		Converter:   c.Converter,
		ScratchRoot: c.ScratchDir,
		KeepScratch: c.KeepScratch,
		Timeout:     c.Timeout.Duration,
	}
}

// Encode writes c as TOML.
func (c Config) Encode() (string, error) {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return "", err
	}
	return b.String(), nil
}

// =============================================================================
// Paths
// =============================================================================

// Path returns the config file location.
func Path() (string, error) {
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the cache directory using XDG standard (~/.cache/latexify/).
func CacheDir() (string, error) {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

// DataDir returns the data directory (~/.local/share/latexify/).
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, AppName), nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
