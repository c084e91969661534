package ingest

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/config"
)

func readEvent(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func newInvokeCommand() *cobra.Command {
	var configPath string
	var eventPath string

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Ingests a single notification read from a file, or stdin with -",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := config.Setup(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			l := logger.Named("cataloger.ingest.invoke")

			raw, err := readEvent(eventPath, cmd.InOrStdin())
			if err != nil {
				return err
			}

			n, closer, err := config.InitializeNormalizer(cmd.Context(), c, logger)
			if err != nil {
				return err
			}
			defer closer()

			res, err := n.Handle(cmd.Context(), raw)
			if err != nil {
				return err
			}

			l.Info("notification ingested",
				zap.Int("targets", res.Targets),
				zap.Int("stored", res.Stored),
			)
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&eventPath, "event", "e", "", "Path to notification JSON, - for stdin")
	cmd.MarkFlagRequired("event")

	return cmd
}
