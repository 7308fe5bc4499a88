package gateway

import (
	"context"
	"fmt"
	"regexp"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS cards (
    card_id         TEXT PRIMARY KEY,
    pan_hash        TEXT NOT NULL UNIQUE,
    pan_masked      TEXT NOT NULL,
    last4           TEXT NOT NULL,
    cardholder_name TEXT NOT NULL,
    expiry_date     TEXT NOT NULL,
    cvv             TEXT NOT NULL,
    balance         NUMERIC(14,2) NOT NULL DEFAULT 0,
    is_verified     BOOLEAN NOT NULL DEFAULT TRUE,
    is_blocked      BOOLEAN NOT NULL DEFAULT FALSE,
    attempts_count  INTEGER NOT NULL DEFAULT 0,
    last_attempt    %[1]s,
    created_at      %[1]s NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    tx_id            TEXT PRIMARY KEY,
    amount           NUMERIC(14,2) NOT NULL,
    status           TEXT NOT NULL CHECK (status IN ('authorized', 'rejected')),
    rejection_reason TEXT,
    created_at       %[1]s NOT NULL,
    card_id          TEXT REFERENCES cards (card_id),
    payer_name       TEXT NOT NULL,
    payer_tax_id     TEXT NOT NULL,
    invoice_number   TEXT UNIQUE,
    CHECK ((status = 'authorized') = (invoice_number IS NOT NULL)),
    CHECK ((status = 'authorized') = (rejection_reason IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_tx_card_status_time ON transactions (card_id, status, created_at);
CREATE INDEX IF NOT EXISTS idx_tx_created_at ON transactions (created_at);
CREATE INDEX IF NOT EXISTS idx_cards_last4 ON cards (last4);
`

func (d dialect) schema() string {
	if d == dialectSQLite {
		return fmt.Sprintf(schemaTemplate, "TIMESTAMP")
	}
	return fmt.Sprintf(schemaTemplate, "TIMESTAMPTZ")
}

var pgPlaceholder = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders into SQLite's numbered ?N form.
func (d dialect) rebind(query string) string {
	if d == dialectSQLite {
		return pgPlaceholder.ReplaceAllString(query, "?$1")
	}
	return query
}

// Migrate creates the cards and transactions tables when they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, r.dialect.schema()); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}
