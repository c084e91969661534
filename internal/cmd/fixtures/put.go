package fixtures

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/catalog"
	"github.com/turbolytics/cataloger/internal/config"
)

func newPutCommand() *cobra.Command {
	var configPath string
	var bucket string
	var key string
	var sourceSystem string
	var contentType string

	var cmd = &cobra.Command{
		Use:   "put <file>",
		Short: "Uploads a file with source system metadata for end to end testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := config.Setup(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			l := logger.Named("cataloger.fixtures.put")

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if key == "" {
				key = filepath.Base(args[0])
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(args[0]))
			}

			repo, err := config.InitializeBlob(c, logger)
			if err != nil {
				return err
			}

			metadata := map[string]string{}
			if sourceSystem != "" {
				metadata[catalog.SourceSystemMetadataKey] = sourceSystem
			}

			if err := repo.Put(cmd.Context(), bucket, key, f, contentType, metadata); err != nil {
				return err
			}

			l.Info("fixture uploaded",
				zap.String("bucket", bucket),
				zap.String("key", key),
				zap.String("source_system", sourceSystem),
			)
			fmt.Fprintln(cmd.OutOrStdout(), catalog.Locator(repo.Scheme(), bucket, key))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Destination bucket")
	cmd.Flags().StringVarP(&key, "key", "k", "", "Object key, defaults to the file name")
	cmd.Flags().StringVarP(&sourceSystem, "source-system", "s", "", "Value of the sourcesystem metadata entry")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type, guessed from the extension when empty")
	cmd.MarkFlagRequired("bucket")
	return cmd
}
