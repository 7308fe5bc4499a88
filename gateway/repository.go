package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jonanatree/paygate/gateway/models"
	"github.com/jonanatree/paygate/internal/cardgen"
)

var ErrNotFound = models.ErrNotFound

var ErrConflict = fmt.Errorf("conflict")

const defaultHashKey = "dev-secret-pepper"

// Repository is both the card store and the transaction ledger. With a nil
// db it keeps everything in memory, which is meant for tests only.
type Repository struct {
	cards        []*models.Card
	cardsByHash  map[string]*models.Card
	transactions []*models.Transaction

	mu      sync.RWMutex
	db      *sql.DB
	dialect dialect
	hashKey []byte
	now     func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		cards:        make([]*models.Card, 0),
		cardsByHash:  make(map[string]*models.Card),
		transactions: make([]*models.Transaction, 0),
		hashKey:      []byte(defaultHashKey),
		now:          time.Now,
	}
}

// NewPGRepository constructs a postgres-backed repository.
func NewPGRepository(db *sql.DB, hashKey []byte) *Repository {
	return &Repository{db: db, dialect: dialectPostgres, hashKey: hashKey, now: time.Now}
}

// NewSQLiteRepository constructs a SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB, hashKey []byte) *Repository {
	return &Repository{db: db, dialect: dialectSQLite, hashKey: hashKey, now: time.Now}
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)
	return db, nil
}

func (r *Repository) q(query string) string {
	return r.dialect.rebind(query)
}

func (r *Repository) hash(pan string) string {
	return cardgen.PANHashHex(cardgen.NormalizePAN(pan), r.hashKey)
}

// CreateCard provisions a card. The PAN is stored as an HMAC hash plus its masked form.
func (r *Repository) CreateCard(ctx context.Context, in models.NewCard) (*models.Card, error) {
	pan := cardgen.NormalizePAN(in.PAN)
	card := &models.Card{
		ID:             uuid.New().String(),
		Number:         cardgen.MaskPAN(pan),
		CardholderName: in.CardholderName,
		ExpirationDate: in.ExpirationDate,
		CVV:            in.CVV,
		Balance:        in.Balance,
		Verified:       in.Verified,
		Blocked:        in.Blocked,
		Attempts:       in.Attempts,
		CreatedAt:      r.now().UTC(),
	}
	hash := r.hash(pan)

	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.cardsByHash[hash]; ok {
			return nil, fmt.Errorf("card number exists: %w", ErrConflict)
		}
		r.cards = append(r.cards, card)
		r.cardsByHash[hash] = card
		cp := *card
		return &cp, nil
	}

	_, err := r.db.ExecContext(ctx, r.q(`
        INSERT INTO cards(card_id, pan_hash, pan_masked, last4, cardholder_name, expiry_date, cvv,
                          balance, is_verified, is_blocked, attempts_count, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    `), card.ID, hash, card.Number, cardgen.LastN(pan, 4), card.CardholderName, card.ExpirationDate, card.CVV,
		card.Balance, card.Verified, card.Blocked, card.Attempts, card.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("card number exists: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting card: %w", err)
	}
	return card, nil
}

// ExistsCardNumber reports whether a PAN is already provisioned.
func (r *Repository) ExistsCardNumber(ctx context.Context, pan string) (bool, error) {
	_, err := r.FindCardByNumber(ctx, pan)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const cardColumns = `card_id, pan_masked, cardholder_name, expiry_date, cvv, balance,
    is_verified, is_blocked, attempts_count, last_attempt, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	var c models.Card
	var lastAttempt sql.NullTime
	err := row.Scan(&c.ID, &c.Number, &c.CardholderName, &c.ExpirationDate, &c.CVV, &c.Balance,
		&c.Verified, &c.Blocked, &c.Attempts, &lastAttempt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastAttempt.Valid {
		t := lastAttempt.Time
		c.LastAttempt = &t
	}
	return &c, nil
}

// FindCardByNumber returns a snapshot of the card, or ErrNotFound.
func (r *Repository) FindCardByNumber(ctx context.Context, number string) (*models.Card, error) {
	hash := r.hash(number)
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		c, ok := r.cardsByHash[hash]
		if !ok {
			return nil, ErrNotFound
		}
		cp := *c
		return &cp, nil
	}
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+cardColumns+` FROM cards WHERE pan_hash = $1`), hash)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting card: %w", err)
	}
	return card, nil
}

// GetCard returns a card by its ID.
func (r *Repository) GetCard(ctx context.Context, cardID string) (*models.Card, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		c := r.findByIDLocked(cardID)
		if c == nil {
			return nil, ErrNotFound
		}
		cp := *c
		return &cp, nil
	}
	card, err := scanCard(r.db.QueryRowContext(ctx, r.q(`SELECT `+cardColumns+` FROM cards WHERE card_id = $1`), cardID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting card: %w", err)
	}
	return card, nil
}

func (r *Repository) findByIDLocked(cardID string) *models.Card {
	for _, c := range r.cards {
		if c.ID == cardID {
			return c
		}
	}
	return nil
}

// SearchCards matches cardholder names (case-insensitive substring) or the last four digits.
func (r *Repository) SearchCards(ctx context.Context, query string, limit int) ([]*models.Card, error) {
	if limit <= 0 {
		limit = 10
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		var out []*models.Card
		for _, c := range r.cards {
			if len(out) == limit {
				break
			}
			if strings.Contains(strings.ToLower(c.CardholderName), needle) || strings.HasSuffix(c.Number, needle) {
				cp := *c
				out = append(out, &cp)
			}
		}
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, r.q(`
        SELECT `+cardColumns+` FROM cards
         WHERE LOWER(cardholder_name) LIKE $1 OR last4 = $2
         ORDER BY created_at
         LIMIT $3
    `), "%"+needle+"%", needle, limit)
	if err != nil {
		return nil, fmt.Errorf("searching cards: %w", err)
	}
	defer rows.Close()
	var out []*models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IncrementAttempts bumps the failed-attempt counter in a single statement.
func (r *Repository) IncrementAttempts(ctx context.Context, cardID string, at time.Time) error {
	at = at.UTC()
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		c := r.findByIDLocked(cardID)
		if c == nil {
			return ErrNotFound
		}
		c.Attempts++
		c.LastAttempt = &at
		return nil
	}
	return r.execOne(ctx, `UPDATE cards SET attempts_count = attempts_count + 1, last_attempt = $2 WHERE card_id = $1`, cardID, at)
}

func (r *Repository) ResetAttempts(ctx context.Context, cardID string) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		c := r.findByIDLocked(cardID)
		if c == nil {
			return ErrNotFound
		}
		c.Attempts = 0
		return nil
	}
	return r.execOne(ctx, `UPDATE cards SET attempts_count = 0 WHERE card_id = $1`, cardID)
}

// DebitBalance subtracts amount only while the balance still covers it.
// A lost race surfaces as models.ErrInsufficientFunds.
func (r *Repository) DebitBalance(ctx context.Context, cardID string, amount decimal.Decimal) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.debitLocked(cardID, amount)
	}
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE cards SET balance = balance - $2 WHERE card_id = $1 AND balance >= $2`), cardID, amount)
	if err != nil {
		return fmt.Errorf("debiting card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrInsufficientFunds
	}
	return nil
}

func (r *Repository) debitLocked(cardID string, amount decimal.Decimal) error {
	c := r.findByIDLocked(cardID)
	if c == nil {
		return ErrNotFound
	}
	if c.Balance.LessThan(amount) {
		return models.ErrInsufficientFunds
	}
	c.Balance = c.Balance.Sub(amount)
	return nil
}

// SettleAuthorization debits the card, resets its attempt counter and appends
// the authorized transaction atomically.
func (r *Repository) SettleAuthorization(ctx context.Context, cardID string, amount decimal.Decimal, t *models.Transaction) (string, error) {
	if err := r.prepareTransaction(t); err != nil {
		return "", err
	}
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.debitLocked(cardID, amount); err != nil {
			return "", err
		}
		r.findByIDLocked(cardID).Attempts = 0
		cp := *t
		r.transactions = append(r.transactions, &cp)
		return t.ID, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, r.q(`
        UPDATE cards
           SET balance = balance - $2,
               attempts_count = 0
         WHERE card_id = $1 AND balance >= $2
    `), cardID, amount)
	if err != nil {
		return "", fmt.Errorf("debiting card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", models.ErrInsufficientFunds
	}
	if err := r.insertTransaction(ctx, tx, t); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return t.ID, nil
}

func (r *Repository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.q(query), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping returns DB readiness
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	var se *sqlite.Error
	if errors.As(err, &se) && (se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) {
		return true
	}
	return false
}
