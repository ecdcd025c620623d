package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/seedgraph/internal/api"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the plan and apply endpoints over HTTP",
		Long: `Start an HTTP server exposing the engine:

  GET  /healthz
  POST /v1/plans    plan a JSON or YAML document
  POST /v1/graphs   apply a document in one transaction
  GET  /v1/runs     recent journal entries (when journaling is on)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			cfg := rootOpts.Config
			if cmd.Flags().Changed("addr") {
				cfg.HTTP.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			schema, err := loadSchema(cfg.SchemaDir)
			if err != nil {
				return fail(f, exitForLoad(err), err)
			}
			st, err := openStore(ctx, cfg)
			if err != nil {
				return fail(f, ExitCommandError, err)
			}
			defer st.Close()

			eng, err := newEngine(rootOpts, schema, st)
			if err != nil {
				return fail(f, ExitFailure, err)
			}
			var runs api.History
			if cfg.Journal {
				runs = st
			}

			if !rootOpts.Verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			router := api.NewRouter(eng, runs, rootOpts.Logger)
			if err := api.Serve(ctx, cfg.HTTP.Addr, router, rootOpts.Logger); err != nil {
				return WrapExitError(ExitFailure, "server error", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
