package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"github.com/jonanatree/paygate/gateway"
)

var Version = "dev"

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "paygate",
		Short:         "paygate - card payment authorization gateway",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional YAML config file (environment variables still apply)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(authorizeCmd())
	rootCmd.AddCommand(cardsCmd())

	return rootCmd
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr))
}

// openService loads configuration and opens the configured store. The caller closes the repository.
func openService(ctx context.Context, logger *slog.Logger) (*gateway.Service, *gateway.Repository, error) {
	cfg, err := gateway.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	gateway.ApplyExpirySettings(logger, cfg)

	repo, err := gateway.OpenRepository(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening repository: %w", err)
	}
	return gateway.NewService(repo, cfg, gateway.WithLogger(logger)), repo, nil
}
