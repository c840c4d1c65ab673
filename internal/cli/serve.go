package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/shiftdesk/internal/telemetry"
	"github.com/example/shiftdesk/internal/wire"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, event stream and exit statistics worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(ctx(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := wire.Get()
			if err != nil {
				return err
			}
			cfg := a.Config
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}

			shutdownTracing, err := telemetry.Setup(runCtx, telemetry.TracingConfig{
				ServiceName: cfg.Telemetry.ServiceName,
				Endpoint:    cfg.Telemetry.OTLPEndpoint,
				Insecure:    cfg.Telemetry.OTLPInsecure,
			})
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := shutdownTracing(sctx); err != nil {
					a.Logger.Warn("tracing shutdown failed", "err", err)
				}
			}()

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      a.HTTPServer().Handler(),
				ReadTimeout:  cfg.Server.ReadTimeout.Duration,
				WriteTimeout: cfg.Server.WriteTimeout.Duration,
			}

			g, gctx := errgroup.WithContext(runCtx)
			g.Go(func() error {
				a.Logger.Info("http server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				return a.ExitQueue.Run(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(sctx)
			})

			fmt.Fprintf(cmd.OutOrStdout(), "✓ shiftdesk serving on %s\n", cfg.Server.Addr)
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	return cmd
}
