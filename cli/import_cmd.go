// cli/import_cmd.go
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newImportATSCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import-ats <readings.csv> <transmissions.csv>",
		Short: "Load an ATS export pair from disk",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			summary, err := a.ingest.ImportATS(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d ATS records (%d devices)\n",
				summary.RowsInserted, summary.RecordsFetched, summary.Devices)
			return nil
		},
	}
}
