package main

import (
	"fmt"
	"os"

	"github.com/FishIT-Mantle/fishit-sub000/internal/config"
	"github.com/FishIT-Mantle/fishit-sub000/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const programName = "fishit-minter"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

// loadRuntime reads the config and builds the logger every subcommand shares
func loadRuntime() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if globalFlags.debug {
		cfg.Logging.Level = "debug"
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	if _, err := maxprocs.Set(maxprocs.Logger(log.Debugf)); err != nil {
		log.WithError(err).Warn("⚠️ Failed to set GOMAXPROCS")
	}

	if cfg.Source != "" {
		log.WithField("config", cfg.Source).Info("📄 Configuration loaded")
	} else {
		log.Info("📄 No config file found, using defaults and environment")
	}
	return cfg, log, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "FishIT NFT mint pipeline for Mantle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(sweepCommand())
	rootCmd.AddCommand(pollCommand())
	rootCmd.AddCommand(processCommand())
	rootCmd.AddCommand(statusCommand())
	rootCmd.AddCommand(totpSecretCommand())
	rootCmd.AddCommand(adminTokenCommand())
	rootCmd.AddCommand(verifyDBCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
