package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"github.com/jonanatree/paygate/gateway"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the ISO 8583 listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := gateway.LoadConfig(configPath)
			if err != nil {
				return err
			}

			app := gateway.NewApp(logger, cfg)
			if err := app.Start(); err != nil {
				return err
			}

			// wait for a signal to shutdown the app
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			sig := <-c
			logger.Info("received signal", slog.String("signal", sig.String()))

			app.Shutdown()
			return nil
		},
	}
}
