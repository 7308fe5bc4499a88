package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jonanatree/paygate/gateway"
	"github.com/jonanatree/paygate/gateway/models"
)

func authorizeCmd() *cobra.Command {
	var req models.ChargeRequest
	var amount string

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Run one charge through the authorization flow",
		Long: `Run one charge through the authorization flow against the configured
store. The outcome is recorded in the ledger like any other charge.

Example:
  paygate authorize --card 4532015112830366 --expiry 12/26 --cvv 123 \
    --amount 150.00 --name "Juan Pérez García" --rfc PEGJ850101ABC`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if d, err := decimal.NewFromString(amount); err == nil {
				req.Amount = d
			} else {
				req.AmountText = amount
			}

			ctx := context.Background()
			svc, repo, err := openService(ctx, newLogger())
			if err != nil {
				return err
			}
			defer repo.Close()

			result, err := svc.Pay(ctx, req)
			var verr *gateway.ValidationError
			if errors.As(err, &verr) {
				for _, msg := range verr.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), "-", msg)
				}
				return fmt.Errorf("charge rejected by validation")
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&req.CardNumber, "card", "", "card number")
	cmd.Flags().StringVar(&req.Expiry, "expiry", "", "expiry date MM/YY")
	cmd.Flags().StringVar(&req.CVV, "cvv", "", "security code")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 150.00")
	cmd.Flags().StringVar(&req.FullName, "name", "", "payer full name")
	cmd.Flags().StringVar(&req.TaxID, "rfc", "", "payer tax ID (RFC)")
	for _, name := range []string{"card", "expiry", "cvv", "amount"} {
		cmd.MarkFlagRequired(name)
	}

	return cmd
}
