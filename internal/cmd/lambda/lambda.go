package lambda

import (
	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/turbolytics/cataloger/internal/config"
	"github.com/turbolytics/cataloger/internal/lambda"
)

func NewCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "lambda",
		Short: "Runs as an AWS Lambda function",
	}
	cmd.AddCommand(newIngestCommand())
	cmd.AddCommand(newQueryCommand())
	return cmd
}

func newIngestCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Handles object creation notifications delivered by S3 or EventBridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := config.Setup(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			n, closer, err := config.InitializeNormalizer(cmd.Context(), c, logger)
			if err != nil {
				return err
			}
			defer closer()

			h := lambda.NewIngestHandler(n, logger.Named("cataloger.lambda.ingest"))
			awslambda.Start(h.Invoke)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}

func newQueryCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Handles catalog lookups proxied by API Gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := config.Setup(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			svc, closer, err := config.InitializeQueryService(cmd.Context(), c, logger)
			if err != nil {
				return err
			}
			defer closer()

			h := lambda.NewQueryHandler(svc, logger.Named("cataloger.lambda.query"))
			awslambda.Start(h.Invoke)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}
