// cli/root.go
package cli

import "github.com/spf13/cobra"

// NewRootCmd builds the collector command tree.
func NewRootCmd(version string) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "collector",
		Short:         "Collar telemetry ingestion for ATS, Lotek and Vectronic",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (environment variables override it)")

	cmd.AddCommand(newRunCmd(&configPath))
	cmd.AddCommand(newImportATSCmd(&configPath))
	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newVersionCmd(version))

	return cmd
}
