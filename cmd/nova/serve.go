package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/nova"
	"github.com/aretw0/nova/internal/console"
	httpAdapter "github.com/aretw0/nova/pkg/adapters/http"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose a console session over HTTP",
	Long: `Opens a console session and serves the introspection API: sessions,
snapshots, navigation, step events (SSE) and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		sessionID, _ := cmd.Flags().GetString("session")

		reg := prometheus.NewRegistry()
		streams := httpAdapter.NewStreamManager()
		printer := console.NewPrinter(cmd.OutOrStdout())

		shell, _, cleanup, err := newShell(cmd, console.NewFactory(printer),
			nova.WithRegisterer(reg),
			nova.WithLifecycleHooks(observability.Combine(
				observability.LogHooks(newLogger(cmd)),
				domain.LifecycleHooks{OnStepChanged: streams.PublishStep},
			)),
		)
		if err != nil {
			return err
		}
		defer cleanup()

		if _, err := shell.Open(cmd.Context(), sessionID, console.NewView("nova", nil), console.NewShell(printer)); err != nil {
			return fmt.Errorf("open session: %w", err)
		}

		srv := &http.Server{
			Addr: addr,
			Handler: httpAdapter.NewHandler(shell,
				httpAdapter.WithGatherer(reg),
				httpAdapter.WithStreams(streams),
				httpAdapter.WithVersion(nova.Version),
				httpAdapter.WithLogger(newLogger(cmd)),
			),
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "Starting Nova Server on %s (session %s)\n", srv.Addr, sessionID)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case sig := <-shutdown:
			fmt.Fprintf(cmd.OutOrStdout(), "\nStart shutdown... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error killing server: %v\n", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Nova Server stopped gracefully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("session", "main", "Session id to open")
}
