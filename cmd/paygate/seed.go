package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonanatree/paygate/gateway"
	"github.com/jonanatree/paygate/gateway/models"
)

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo cards into the card store",
		Long: `Load demo cards into the card store.

Without --file the bundled demo cards are used. Card numbers that already
exist are skipped, so seeding twice is harmless.

Examples:
  paygate seed
  paygate seed --file cards.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cards []models.NewCard
			var err error
			if file != "" {
				cards, err = gateway.LoadSeedFile(file)
			} else {
				cards, err = gateway.DefaultSeedCards()
			}
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, repo, err := openService(ctx, newLogger())
			if err != nil {
				return err
			}
			defer repo.Close()

			created, skipped, err := svc.Seed(ctx, cards)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d cards, skipped %d existing\n", created, skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a top-level cards list")

	return cmd
}
