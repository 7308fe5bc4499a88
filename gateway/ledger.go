package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jonanatree/paygate/gateway/models"
)

const txColumns = `tx_id, amount, status, rejection_reason, created_at, card_id, payer_name, payer_tax_id, invoice_number`

// prepareTransaction validates the status invariant and fills ID and timestamp.
func (r *Repository) prepareTransaction(t *models.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now()
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) insertTransaction(ctx context.Context, db execer, t *models.Transaction) error {
	_, err := db.ExecContext(ctx, r.q(`
        INSERT INTO transactions(`+txColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `), t.ID, t.Amount, string(t.Status), nullString(t.RejectionReason), t.CreatedAt, t.CardID,
		t.Payer.Name, t.Payer.TaxID, nullString(t.InvoiceNumber))
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

// AppendTransaction records one charge outcome and returns its ID.
func (r *Repository) AppendTransaction(ctx context.Context, t *models.Transaction) (string, error) {
	if err := r.prepareTransaction(t); err != nil {
		return "", err
	}
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		cp := *t
		r.transactions = append(r.transactions, &cp)
		return t.ID, nil
	}
	if err := r.insertTransaction(ctx, r.db, t); err != nil {
		return "", err
	}
	return t.ID, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var status string
	var reason, cardID, invoice sql.NullString
	err := row.Scan(&t.ID, &t.Amount, &status, &reason, &t.CreatedAt, &cardID, &t.Payer.Name, &t.Payer.TaxID, &invoice)
	if err != nil {
		return nil, err
	}
	t.Status = models.TransactionStatus(status)
	t.RejectionReason = reason.String
	t.InvoiceNumber = invoice.String
	if cardID.Valid {
		id := cardID.String
		t.CardID = &id
	}
	return &t, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, t := range r.transactions {
			if t.ID == id {
				cp := *t
				return &cp, nil
			}
		}
		return nil, ErrNotFound
	}
	t, err := scanTransaction(r.db.QueryRowContext(ctx, r.q(`SELECT `+txColumns+` FROM transactions WHERE tx_id = $1`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting transaction: %w", err)
	}
	return t, nil
}

func matches(t *models.Transaction, f models.TransactionFilter) bool {
	if f.CardID != "" && (t.CardID == nil || *t.CardID != f.CardID) {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

// ListTransactions returns matching transactions, newest first.
func (r *Repository) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]*models.Transaction, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		var out []*models.Transaction
		for _, t := range r.transactions {
			if matches(t, f) {
				cp := *t
				out = append(out, &cp)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		if len(out) > f.Limit {
			out = out[:f.Limit]
		}
		return out, nil
	}

	var conds []string
	var args []any
	if f.CardID != "" {
		args = append(args, f.CardID)
		conds = append(conds, fmt.Sprintf("card_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + txColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()
	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountAuthorizedSince counts authorized transactions for the card strictly after since.
func (r *Repository) CountAuthorizedSince(ctx context.Context, cardID string, since time.Time) (int, error) {
	since = since.UTC()
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		n := 0
		for _, t := range r.transactions {
			if t.Status == models.TransactionStatusAuthorized && t.CardID != nil && *t.CardID == cardID && t.CreatedAt.After(since) {
				n++
			}
		}
		return n, nil
	}
	var n int
	err := r.db.QueryRowContext(ctx, r.q(`
        SELECT COUNT(*) FROM transactions
         WHERE card_id = $1 AND status = 'authorized' AND created_at > $2
    `), cardID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting authorized transactions: %w", err)
	}
	return n, nil
}

// Summary aggregates outcomes recorded after since.
func (r *Repository) Summary(ctx context.Context, since time.Time) (*models.Summary, error) {
	since = since.UTC()
	s := &models.Summary{Since: since, AuthorizedTotal: decimal.Zero}
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, t := range r.transactions {
			if !t.CreatedAt.After(since) {
				continue
			}
			switch t.Status {
			case models.TransactionStatusAuthorized:
				s.Authorized++
				s.AuthorizedTotal = s.AuthorizedTotal.Add(t.Amount)
			case models.TransactionStatusRejected:
				s.Rejected++
			}
		}
		return s, nil
	}
	rows, err := r.db.QueryContext(ctx, r.q(`
        SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
          FROM transactions
         WHERE created_at > $1
         GROUP BY status
    `), since)
	if err != nil {
		return nil, fmt.Errorf("summarizing transactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		var total decimal.Decimal
		if err := rows.Scan(&status, &count, &total); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		switch models.TransactionStatus(status) {
		case models.TransactionStatusAuthorized:
			s.Authorized = count
			s.AuthorizedTotal = total
		case models.TransactionStatusRejected:
			s.Rejected = count
		}
	}
	return s, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
