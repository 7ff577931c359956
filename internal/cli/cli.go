// Package cli implements the latexify command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/latexify/pkg/buildinfo"
	"github.com/matzehuels/latexify/pkg/cache"
	"github.com/matzehuels/latexify/pkg/compile"
	"github.com/matzehuels/latexify/pkg/config"
	"github.com/matzehuels/latexify/pkg/document"
	"github.com/matzehuels/latexify/pkg/document/mongostore"
	"github.com/matzehuels/latexify/pkg/latexify"
	"github.com/matzehuels/latexify/pkg/observability"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = config.AppName

	// documentsDir is the file store's subdirectory of the data directory.
	documentsDir = "documents"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Toolchain overrides the pdflatex/pdf2svg executables. Nil runs the
	// configured binaries.
	Toolchain compile.Toolchain

	// ConfigPath overrides the config file location.
	ConfigPath string

	cfg *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "latexify renders LaTeX text layers as vector graphics",
		Long:         `latexify compiles LaTeX snippets to SVG with pdflatex and pdf2svg, and converts the text layers of a design document to rendered LaTeX groups and back.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Hooks log at debug level, so they only show with --verbose.
		observability.NewLogHooks(c.Logger).Register()
		return nil
	}
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/latexify/config.toml)")

	// Register all subcommands
	root.AddCommand(c.compileCommand())
	root.AddCommand(c.toggleCommand())
	root.AddCommand(c.docCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the config file once per process.
func (c *CLI) loadConfig() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	path, err := c.configPath()
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	c.Logger.Debug("loaded config", "path", path, "cache", cfg.Cache.Backend, "store", cfg.Store.Backend)
	c.cfg = &cfg
	return cfg, nil
}

func (c *CLI) configPath() (string, error) {
	if c.ConfigPath != "" {
		return c.ConfigPath, nil
	}
	return config.Path()
}

// converterConfig maps the config onto converter settings.
func converterConfig(cfg config.Config) latexify.Config {
	return latexify.Config{
		TemplateLocation: cfg.Template,
		Preamble:         cfg.Preamble,
		DefaultFontSize:  cfg.FontSize,
	}
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a compile runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config, noCache bool) (*compile.Runner, error) {
	ch, err := c.newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	return compile.NewRunner(ch, c.Toolchain, c.Logger, cfg.CompileOptions()), nil
}

// newCache opens the configured artifact cache. When no cache directory can
// be resolved, caching is disabled with a warning.
func (c *CLI) newCache(ctx context.Context, cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	}
	dir, err := cacheDir(cfg)
	if err != nil {
		c.Logger.Warn("caching disabled: no cache directory", "err", err)
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// =============================================================================
// Document Stores
// =============================================================================

// openStore opens the configured document store.
func openStore(ctx context.Context, cfg config.Config) (document.Store, error) {
	if cfg.Store.Backend == config.StoreMongo {
		ms, err := mongostore.New(ctx, mongostore.Config{
			URI:      cfg.Store.MongoURI,
			Database: cfg.Store.MongoDatabase,
		})
		if err != nil {
			return nil, err
		}
		return ms, nil
	}
	dir, err := storeDir(cfg)
	if err != nil {
		return nil, err
	}
	fs, err := document.NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// openDocument resolves ref to a store and document ID. A ref that names a
// .json file opens that file directly; anything else is an ID in the
// configured store.
func (c *CLI) openDocument(ctx context.Context, ref string) (document.Store, string, error) {
	if strings.HasSuffix(ref, ".json") || strings.ContainsRune(ref, filepath.Separator) {
		fs, id, err := document.OpenPath(ref)
		if err != nil {
			return nil, "", err
		}
		return fs, id, nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, "", err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	return store, ref, nil
}

// loadDocument opens ref and loads it.
func (c *CLI) loadDocument(ctx context.Context, ref string) (document.Store, *document.Document, error) {
	store, id, err := c.openDocument(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	doc, err := store.Load(ctx, id)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("load %s: %w", ref, err)
	}
	return store, doc, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the artifact cache directory.
func cacheDir(cfg config.Config) (string, error) {
	if cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return config.CacheDir()
}

// storeDir returns the file store directory (~/.local/share/latexify/documents/).
func storeDir(cfg config.Config) (string, error) {
	if cfg.Store.Dir != "" {
		return cfg.Store.Dir, nil
	}
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, documentsDir), nil
}

// readInput reads arg, or stdin when arg is "-" or empty.
func readInput(arg string, stdin io.Reader) (string, error) {
	if arg != "" && arg != "-" {
		return arg, nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
