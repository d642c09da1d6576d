package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sweep/internal/adapters/driving/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background scheduler",
	Long: `Starts the HTTP API (OAuth handshake, integration management, webhooks)
and the scheduler that refreshes tokens, renews webhook subscriptions and
sweeps expired OAuth states. Stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(a *app) error {
		server := api.NewServer(a.settings.Server, a.apiServices(), a.logger)
		scheduler := a.scheduler()

		a.logger.Info("sweep starting",
			zap.String("version", version),
			zap.String("storage", string(a.settings.Storage.Driver)),
			zap.String("events", string(a.settings.Events.Driver)))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.Run(gctx)
		})
		g.Go(func() error {
			err := scheduler.Start(gctx)
			if gctx.Err() != nil {
				return nil
			}
			return err
		})

		err := g.Wait()
		if stopErr := scheduler.Stop(); stopErr != nil {
			a.logger.Warn("stopping scheduler", zap.Error(stopErr))
		}
		if err != nil && ctx.Err() == nil {
			return err
		}
		a.logger.Info("sweep stopped")
		return nil
	})
}
