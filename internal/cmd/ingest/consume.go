package ingest

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/config"
)

func newConsumeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Ingests notifications from a Kafka topic until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, logger, err := config.Setup(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			l := logger.Named("cataloger.ingest.consume")

			consumer, err := config.InitializeConsumer(c, logger)
			if err != nil {
				return err
			}

			n, closer, err := config.InitializeNormalizer(ctx, c, logger)
			if err != nil {
				return err
			}
			defer closer()

			l.Info("consuming notifications", zap.String("topic", consumer.Topic()))
			return consumer.Run(ctx, func(ctx context.Context, value []byte) error {
				_, err := n.Handle(ctx, value)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}
