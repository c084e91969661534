package store

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/config"
)

func NewCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "store",
		Short: "Manages the catalog record store",
	}
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newMigrateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Creates the catalog table and its secondary index",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := config.Setup(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			l := logger.Named("cataloger.store.migrate")

			s, err := config.InitializeStore(cmd.Context(), c, logger)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			if err := s.Migrate(cmd.Context()); err != nil {
				return err
			}

			l.Info("store migrated",
				zap.String("type", c.Store.Type),
				zap.String("table", c.Store.Table),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}
