// cli/serve_cmd.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bctw/collector/handlers"
)

func newServeCmd(configPath *string) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the health and manual fetch API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalNotifyContext(cmd.Context(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			if port == "" {
				port = a.cfg.Server.Port
			}
			h := handlers.NewAdminHandler(a.ingest, a.pool, a.logger)
			return serveAPI(ctx, ":"+port, h.Routes(), a)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (defaults to server.port)")

	return cmd
}

func serveAPI(ctx context.Context, addr string, handler http.Handler, a *app) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server: listening", "addr", addr)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		a.logger.Info("Server: stopped")
		return nil
	}
}
