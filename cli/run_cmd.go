// cli/run_cmd.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bctw/collector/lock"
	"github.com/bctw/collector/models"
)

var signalNotifyContext = signal.NotifyContext

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run [vendor...|all]",
		Short: "Run one ingestion pass for the given vendors",
		Long:  "Run one ingestion pass. Vendors are lotek, vectronic and ats; with no argument or \"all\" every vendor runs in turn.",
		RunE: func(cmd *cobra.Command, args []string) error {
			vendorList, err := parseVendors(args)
			if err != nil {
				return exitCodeError(exitFailure, err)
			}
			ctx, stop := signalNotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			return runVendors(ctx, a, vendorList)
		},
	}
}

// runVendors runs each vendor in turn. One vendor failing does not stop
// the others; the returned error joins every failure.
func runVendors(ctx context.Context, a *app, vendorList []models.Vendor) error {
	var errs []error
	for _, v := range vendorList {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := a.ingest.Run(ctx, v)
		switch {
		case err == nil:
		case errors.Is(err, lock.ErrHeld):
			a.logger.Info("Service: another run holds the lock, skipping", "vendor", string(v))
		default:
			errs = append(errs, fmt.Errorf("%s: %w", v, err))
		}
	}
	return errors.Join(errs...)
}

func parseVendors(args []string) ([]models.Vendor, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "all") {
		return models.AllVendors, nil
	}
	seen := map[models.Vendor]bool{}
	var out []models.Vendor
	for _, arg := range args {
		v, err := models.ParseVendor(arg)
		if err != nil {
			return nil, err
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}
