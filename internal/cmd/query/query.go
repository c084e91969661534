package query

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turbolytics/cataloger/internal/config"
	"github.com/turbolytics/cataloger/internal/query"
)

func NewCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "query",
		Short: "Serves catalog lookups",
	}
	cmd.AddCommand(newServeCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	var configPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the catalog query HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, logger, err := config.Setup(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if addr == "" {
				addr = c.Query.Addr
			}

			svc, closer, err := config.InitializeQueryService(ctx, c, logger)
			if err != nil {
				return err
			}
			defer closer()

			srv := query.NewServer(svc, logger.Named("cataloger.query.server"))
			return srv.Start(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, defaults to query.addr from config")
	return cmd
}
