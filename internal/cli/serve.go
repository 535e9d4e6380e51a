package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/courier/internal/adapters/spool"
	"github.com/example/courier/internal/server"
	"github.com/example/courier/internal/wire"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and timeout sweeper",
		Long: `Run the inbound webhook server, the periodic timeout sweeper, and
(when configured) the spool directory watcher. Stops cleanly on SIGINT
and SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := wire.Config()
			logger := wire.Logger()

			if addr == "" {
				addr = cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(wire.InboundService(), logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Listen(addr)
			}()

			// Sweeper: expired waiting flows become timed_out.
			interval := time.Duration(cfg.Server.SweepIntervalSeconds) * time.Second
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if n, err := wire.FlowService().SweepTimeouts(ctx); err != nil {
							logger.Error("sweep failed", "error", err)
						} else if n > 0 {
							logger.Info("sweep complete", "timed_out", n)
						}
					}
				}
			}()

			if cfg.Spool.Enabled && cfg.Spool.Dir != "" {
				watcher, err := spool.NewWatcher(cfg.Spool.Dir, wire.InboundService(), logger)
				if err != nil {
					return err
				}
				go func() {
					if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
						logger.Error("spool watcher stopped", "error", err)
					}
				}()
			}

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
				return srv.Shutdown()
			case err := <-errCh:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}
