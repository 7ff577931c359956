package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/latexify/internal/server"
)

// serveCommand creates the HTTP API command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	var noCache bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compile and toggle HTTP API",
		Long: `Serve exposes the compiler over HTTP:

  GET  /healthz
  POST /api/v1/compile   {"content": "x^2", "width": 100, "height": 50}
  POST /api/v1/toggle    {"document": {...}, "selection": ["layer-id"]}

Every request compiles in its own scratch directory, so requests run
concurrently.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			runner, err := c.newRunner(ctx, cfg, noCache)
			if err != nil {
				return err
			}
			defer runner.Cache.Close()

			srv := server.New(runner, converterConfig(cfg), c.Logger)
			printInfo("Serving on %s", StyleHighlight.Render("http://"+addr))
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the artifact cache")

	return cmd
}
