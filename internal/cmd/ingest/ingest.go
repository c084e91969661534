package ingest

import "github.com/spf13/cobra"

func NewCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "ingest",
		Short: "Catalogs objects referenced by creation notifications",
	}
	cmd.AddCommand(newInvokeCommand())
	cmd.AddCommand(newConsumeCommand())
	return cmd
}
