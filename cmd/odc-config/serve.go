// cmd/odc-config/serve.go
//
// `odc-config serve` – loopback debug endpoint over the resolver.
//
// Exposes resolved environments (secrets masked) and Prometheus metrics.
// Shutdown is signal-driven; the listener and the signal watcher run under
// one errgroup so either failure tears down both.
//

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/opendatacube/odc-config/internal/server"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve resolved environments and metrics over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := newResolver()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(flagListen, server.NewRouter(res))

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.S().Infow("debug endpoint online", "addr", flagListen)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "127.0.0.1:9393",
		"listen address for the debug endpoint")
	rootCmd.AddCommand(serveCmd)
}
