package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/planner/pkg/api"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr  string
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner as a JSON API",
		Long: `Serve the planner over HTTP. Besides the /api routes, Prometheus metrics
are exposed at /metrics and a health check at /healthz.`,
		Args: cobra.NoArgs,
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if !debug {
				gin.SetMode(gin.ReleaseMode)
			}
			if addr == "" {
				addr = a.cfg.Serve.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := api.NewServer(a.planner, a.metrics, a.registry, a.logger)
			return srv.Run(ctx, addr)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default serve.addr from config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "run gin in debug mode")
	return cmd
}
