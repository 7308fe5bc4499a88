package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jonanatree/paygate/gateway/models"
	"github.com/jonanatree/paygate/internal/cardgen"
)

// TestCardNumberStoredAsHash verifies the clear PAN never reaches the cards table.
func TestCardNumberStoredAsHash(t *testing.T) {
	for name, open := range repositories(t) {
		if name == "mem" {
			continue
		}
		open := open
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			svc := NewService(repo, DefaultConfig())
			issued, err := svc.IssueCard(ctx, models.IssueCard{CardholderName: "Diego Morales", Balance: decimal.NewFromInt(10)})
			require.NoError(t, err)

			var hash, masked, last4, expiryDate string
			row := repo.db.QueryRowContext(ctx, repo.q(`SELECT pan_hash, pan_masked, last4, expiry_date FROM cards WHERE card_id = $1`), issued.ID)
			require.NoError(t, row.Scan(&hash, &masked, &last4, &expiryDate))

			require.Equal(t, cardgen.PANHashHex(issued.PAN, []byte("test-key")), hash)
			require.NotContains(t, hash, issued.PAN)
			require.Equal(t, cardgen.MaskPAN(issued.PAN), masked)
			require.True(t, strings.HasSuffix(issued.PAN, last4))
			require.Len(t, expiryDate, 5, "stored as MM/YY card face")
		})
	}
}

func TestSchemaRejectsInconsistentTransactions(t *testing.T) {
	db, err := OpenSQLite(t.TempDir() + "/paygate.db")
	require.NoError(t, err)
	repo := NewSQLiteRepository(db, []byte("test-key"))
	ctx := context.Background()
	require.NoError(t, repo.Migrate(ctx))
	// Migrate is idempotent
	require.NoError(t, repo.Migrate(ctx))
	t.Cleanup(func() { repo.Close() })

	// authorized without an invoice number must fail even when the Go-side check is bypassed
	_, err = db.ExecContext(ctx, `INSERT INTO transactions(tx_id, amount, status, created_at, payer_name, payer_tax_id)
        VALUES ('t1', 10, 'authorized', '2026-10-16 12:00:00+00:00', 'Ana', 'GOHA900101AB1')`)
	require.Error(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO transactions(tx_id, amount, status, rejection_reason, created_at, payer_name, payer_tax_id)
        VALUES ('t2', 10, 'rejected', 'incorrect security code (CVV)', '2026-10-16 12:00:00+00:00', 'Ana', 'GOHA900101AB1')`)
	require.NoError(t, err)
}
