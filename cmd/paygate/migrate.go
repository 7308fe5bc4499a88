package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonanatree/paygate/gateway"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the cards and transactions tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := gateway.LoadConfig(configPath)
			if err != nil {
				return err
			}
			// OpenRepository migrates on open
			repo, err := gateway.OpenRepository(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", cfg.RepoBackend)
			return nil
		},
	}
}
