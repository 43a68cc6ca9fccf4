package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/app"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watcher, the retry sweep and the ops API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			container, err := app.NewServiceContainer(cfg, log)
			if err != nil {
				return err
			}
			defer container.Cleanup()

			if err := container.InitPipeline(ctx); err != nil {
				return err
			}
			if err := container.InitServer(); err != nil {
				return err
			}

			errCh := container.Start(ctx)
			log.Info("✅ FishIT minter running")

			select {
			case <-ctx.Done():
				log.Info("🛑 Shutdown signal received")
			case err = <-errCh:
				log.WithError(err).Error("❌ Ops server stopped")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			container.Stop(shutdownCtx)
			return err
		},
	}
}
