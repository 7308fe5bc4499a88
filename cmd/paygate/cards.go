package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jonanatree/paygate/gateway/models"
	"github.com/jonanatree/paygate/internal/cardgen"
)

func cardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage provisioned cards",
	}
	cmd.AddCommand(issueCardCmd())
	return cmd
}

func issueCardCmd() *cobra.Command {
	var (
		name    string
		balance string
		product string
		showCVV bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a card with a generated Luhn-valid number",
		RunE: func(cmd *cobra.Command, args []string) error {
			bal, err := decimal.NewFromString(balance)
			if err != nil {
				return fmt.Errorf("invalid balance %q", balance)
			}

			ctx := context.Background()
			svc, repo, err := openService(ctx, newLogger())
			if err != nil {
				return err
			}
			defer repo.Close()

			card, err := svc.IssueCard(ctx, models.IssueCard{CardholderName: name, Balance: bal, Product: product})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			pan := cardgen.MaskPAN(card.PAN)
			if verbose {
				pan = card.PAN + "   (WARNING: printing full PAN)"
			}
			fmt.Fprintf(out, "ID: %s\nPAN: %s\nFACE: %s\nBALANCE: %s\n", card.ID, pan, card.CardFace, card.Balance.StringFixed(2))
			if showCVV {
				fmt.Fprintf(out, "CVV: %s\n", card.CVV)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "cardholder name")
	cmd.Flags().StringVar(&balance, "balance", "0", "opening balance")
	cmd.Flags().StringVar(&product, "product", "", "card product: credit|debit (defaults to config)")
	cmd.Flags().BoolVar(&showCVV, "show-cvv", false, "print CVV to console (demo only)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "print full PAN (otherwise masked)")
	cmd.MarkFlagRequired("name")

	return cmd
}
