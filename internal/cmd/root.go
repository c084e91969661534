package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turbolytics/cataloger/internal/cmd/fixtures"
	"github.com/turbolytics/cataloger/internal/cmd/ingest"
	"github.com/turbolytics/cataloger/internal/cmd/lambda"
	"github.com/turbolytics/cataloger/internal/cmd/query"
	"github.com/turbolytics/cataloger/internal/cmd/store"
)

func NewRootCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "cataloger",
		Short: "Catalogs objects landing in blob storage",
		Long: `cataloger records a catalog entry for every object created in a bucket
and serves lookups by source system or by bucket and time window.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(ingest.NewCommand())
	cmd.AddCommand(query.NewCommand())
	cmd.AddCommand(lambda.NewCommand())
	cmd.AddCommand(store.NewCommand())
	cmd.AddCommand(fixtures.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
