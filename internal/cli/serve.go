package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/graphgate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the health endpoint, metrics, and query API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(a.cfg.HTTP.Addr, a.gateway(), a.prober(), a.logger)
		return srv.Run(ctx)
	},
}
