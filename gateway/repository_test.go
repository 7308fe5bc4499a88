package gateway

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jonanatree/paygate/gateway/models"
)

// repositories returns every backend available to the test run. Postgres
// joins when REPO_BACKEND=pg and DB_DSN are set.
func repositories(t *testing.T) map[string]func(t *testing.T) *Repository {
	t.Helper()

	backends := map[string]func(t *testing.T) *Repository{
		"mem": func(t *testing.T) *Repository { return NewRepository() },
		"sqlite": func(t *testing.T) *Repository {
			db, err := OpenSQLite(filepath.Join(t.TempDir(), "paygate.db"))
			require.NoError(t, err)
			repo := NewSQLiteRepository(db, []byte("test-key"))
			require.NoError(t, repo.Migrate(context.Background()))
			t.Cleanup(func() { repo.Close() })
			return repo
		},
	}

	if os.Getenv("REPO_BACKEND") == "pg" && os.Getenv("DB_DSN") != "" {
		backends["pg"] = func(t *testing.T) *Repository {
			db, err := sql.Open("postgres", os.Getenv("DB_DSN"))
			require.NoError(t, err)
			repo := NewPGRepository(db, []byte("test-key"))
			ctx := context.Background()
			require.NoError(t, repo.Migrate(ctx))
			_, err = db.ExecContext(ctx, `TRUNCATE transactions, cards`)
			require.NoError(t, err)
			t.Cleanup(func() { repo.Close() })
			return repo
		}
	}
	return backends
}

func newCard(pan string, balance int64) models.NewCard {
	return models.NewCard{
		PAN:            pan,
		CardholderName: "Ana González Hernández",
		ExpirationDate: "11/27",
		CVV:            "321",
		Balance:        decimal.NewFromInt(balance),
		Verified:       true,
	}
}

func authorizedTx(cardID string, amount int64, at time.Time) *models.Transaction {
	return &models.Transaction{
		Amount:        decimal.NewFromInt(amount),
		Status:        models.TransactionStatusAuthorized,
		CreatedAt:     at,
		CardID:        &cardID,
		Payer:         models.Payer{Name: "Ana González Hernández", TaxID: "GOHA900101AB1"},
		InvoiceNumber: invoiceNumber(at),
	}
}

func rejectedTx(cardID string, at time.Time) *models.Transaction {
	return &models.Transaction{
		Amount:          decimal.NewFromInt(10),
		Status:          models.TransactionStatusRejected,
		RejectionReason: "incorrect security code (CVV)",
		CreatedAt:       at,
		CardID:          &cardID,
		Payer:           models.Payer{Name: "Ana González Hernández", TaxID: "GOHA900101AB1"},
	}
}

func TestRepository(t *testing.T) {
	for name, open := range repositories(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Run("cards", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				card, err := repo.CreateCard(ctx, newCard("5555 5555 5555 4444", 800))
				require.NoError(t, err)
				require.Equal(t, "555555******4444", card.Number)

				_, err = repo.CreateCard(ctx, newCard("5555555555554444", 1))
				require.ErrorIs(t, err, ErrConflict)

				found, err := repo.FindCardByNumber(ctx, "5555555555554444")
				require.NoError(t, err)
				require.Equal(t, card.ID, found.ID)
				require.Equal(t, "800.00", found.Balance.StringFixed(2))
				require.Equal(t, "321", found.CVV)
				require.True(t, found.Verified)
				require.False(t, found.Blocked)
				require.Nil(t, found.LastAttempt)

				_, err = repo.FindCardByNumber(ctx, "4111111111111111")
				require.ErrorIs(t, err, ErrNotFound)

				exists, err := repo.ExistsCardNumber(ctx, "5555555555554444")
				require.NoError(t, err)
				require.True(t, exists)

				_, err = repo.GetCard(ctx, "missing")
				require.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("attempts", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				card, err := repo.CreateCard(ctx, newCard("5555555555554444", 800))
				require.NoError(t, err)

				at := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)
				require.NoError(t, repo.IncrementAttempts(ctx, card.ID, at))
				require.NoError(t, repo.IncrementAttempts(ctx, card.ID, at.Add(time.Minute)))

				got, err := repo.GetCard(ctx, card.ID)
				require.NoError(t, err)
				require.Equal(t, 2, got.Attempts)
				require.NotNil(t, got.LastAttempt)
				require.True(t, got.LastAttempt.Equal(at.Add(time.Minute)))

				require.NoError(t, repo.ResetAttempts(ctx, card.ID))
				got, err = repo.GetCard(ctx, card.ID)
				require.NoError(t, err)
				require.Zero(t, got.Attempts)

				require.ErrorIs(t, repo.IncrementAttempts(ctx, "missing", at), ErrNotFound)
			})

			t.Run("concurrent attempts are not lost", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				card, err := repo.CreateCard(ctx, newCard("5555555555554444", 800))
				require.NoError(t, err)

				var wg sync.WaitGroup
				errs := make(chan error, 10)
				for i := 0; i < 10; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						errs <- repo.IncrementAttempts(ctx, card.ID, time.Now())
					}()
				}
				wg.Wait()
				close(errs)
				for err := range errs {
					require.NoError(t, err)
				}

				got, err := repo.GetCard(ctx, card.ID)
				require.NoError(t, err)
				require.Equal(t, 10, got.Attempts)
			})

			t.Run("debit", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				card, err := repo.CreateCard(ctx, newCard("5555555555554444", 800))
				require.NoError(t, err)

				require.NoError(t, repo.DebitBalance(ctx, card.ID, decimal.RequireFromString("799.50")))
				require.ErrorIs(t, repo.DebitBalance(ctx, card.ID, decimal.NewFromInt(1)), models.ErrInsufficientFunds)

				got, err := repo.GetCard(ctx, card.ID)
				require.NoError(t, err)
				require.Equal(t, "0.50", got.Balance.StringFixed(2))
			})

			t.Run("settle authorization", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()
				at := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

				card, err := repo.CreateCard(ctx, newCard("5555555555554444", 800))
				require.NoError(t, err)
				require.NoError(t, repo.IncrementAttempts(ctx, card.ID, at))

				id, err := repo.SettleAuthorization(ctx, card.ID, decimal.NewFromInt(300), authorizedTx(card.ID, 300, at))
				require.NoError(t, err)
				require.NotEmpty(t, id)

				got, err := repo.GetCard(ctx, card.ID)
				require.NoError(t, err)
				require.Equal(t, "500.00", got.Balance.StringFixed(2))
				require.Zero(t, got.Attempts)

				// a losing debit leaves neither a balance change nor a ledger entry
				_, err = repo.SettleAuthorization(ctx, card.ID, decimal.NewFromInt(600), authorizedTx(card.ID, 600, at))
				require.ErrorIs(t, err, models.ErrInsufficientFunds)

				transactions, err := repo.ListTransactions(ctx, models.TransactionFilter{CardID: card.ID})
				require.NoError(t, err)
				require.Len(t, transactions, 1)
				require.Equal(t, id, transactions[0].ID)
			})

			t.Run("ledger", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()
				now := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

				card, err := repo.CreateCard(ctx, newCard("5555555555554444", 800))
				require.NoError(t, err)
				other, err := repo.CreateCard(ctx, newCard("5105105105105100", 800))
				require.NoError(t, err)

				for i, at := range []time.Time{now.Add(-2 * time.Hour), now.Add(-30 * time.Minute), now.Add(-time.Minute)} {
					_, err := repo.AppendTransaction(ctx, authorizedTx(card.ID, int64(10*(i+1)), at))
					require.NoError(t, err)
				}
				_, err = repo.AppendTransaction(ctx, rejectedTx(card.ID, now.Add(-10*time.Minute)))
				require.NoError(t, err)
				_, err = repo.AppendTransaction(ctx, authorizedTx(other.ID, 99, now.Add(-5*time.Minute)))
				require.NoError(t, err)

				n, err := repo.CountAuthorizedSince(ctx, card.ID, now.Add(-time.Hour))
				require.NoError(t, err)
				require.Equal(t, 2, n)

				// the window start itself is excluded
				n, err = repo.CountAuthorizedSince(ctx, card.ID, now.Add(-30*time.Minute))
				require.NoError(t, err)
				require.Equal(t, 1, n)

				all, err := repo.ListTransactions(ctx, models.TransactionFilter{CardID: card.ID})
				require.NoError(t, err)
				require.Len(t, all, 4)
				for i := 1; i < len(all); i++ {
					require.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt), "newest first")
				}

				rejected, err := repo.ListTransactions(ctx, models.TransactionFilter{Status: models.TransactionStatusRejected})
				require.NoError(t, err)
				require.Len(t, rejected, 1)
				require.Equal(t, "incorrect security code (CVV)", rejected[0].RejectionReason)

				limited, err := repo.ListTransactions(ctx, models.TransactionFilter{Limit: 2})
				require.NoError(t, err)
				require.Len(t, limited, 2)

				got, err := repo.GetTransaction(ctx, all[0].ID)
				require.NoError(t, err)
				require.Equal(t, all[0].InvoiceNumber, got.InvoiceNumber)
				require.Equal(t, "GOHA900101AB1", got.Payer.TaxID)

				_, err = repo.GetTransaction(ctx, "missing")
				require.ErrorIs(t, err, ErrNotFound)

				summary, err := repo.Summary(ctx, now.Add(-time.Hour))
				require.NoError(t, err)
				require.Equal(t, 3, summary.Authorized)
				require.Equal(t, 1, summary.Rejected)
				require.Equal(t, "149.00", summary.AuthorizedTotal.StringFixed(2))
			})

			t.Run("ledger rejects inconsistent records", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				bad := rejectedTx("x", time.Now())
				bad.InvoiceNumber = "F20261016120000ABCDEF"
				_, err := repo.AppendTransaction(ctx, bad)
				require.ErrorIs(t, err, models.ErrInvalidTransaction)

				bad = authorizedTx("x", 1, time.Now())
				bad.InvoiceNumber = ""
				_, err = repo.AppendTransaction(ctx, bad)
				require.ErrorIs(t, err, models.ErrInvalidTransaction)
			})

			t.Run("transactions without a card", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				tx := rejectedTx("", time.Now())
				tx.CardID = nil
				id, err := repo.AppendTransaction(ctx, tx)
				require.NoError(t, err)

				got, err := repo.GetTransaction(ctx, id)
				require.NoError(t, err)
				require.Nil(t, got.CardID)
			})

			t.Run("search", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				_, err := repo.CreateCard(ctx, newCard("5555555555554444", 800))
				require.NoError(t, err)
				other := newCard("5105105105105100", 800)
				other.CardholderName = "Valeria Aguilar Ortega"
				_, err = repo.CreateCard(ctx, other)
				require.NoError(t, err)

				cards, err := repo.SearchCards(ctx, "aguilar", 10)
				require.NoError(t, err)
				require.Len(t, cards, 1)
				require.Equal(t, "Valeria Aguilar Ortega", cards[0].CardholderName)

				cards, err = repo.SearchCards(ctx, "4444", 10)
				require.NoError(t, err)
				require.Len(t, cards, 1)
				require.Equal(t, "555555******4444", cards[0].Number)
			})
		})
	}
}

func TestSQLiteRebind(t *testing.T) {
	require.Equal(t, "SELECT ?1, ?2, ?10", dialectSQLite.rebind("SELECT $1, $2, $10"))
	require.Equal(t, "SELECT $1", dialectPostgres.rebind("SELECT $1"))
}
