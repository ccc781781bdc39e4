package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finbase/backend/internal/models"
)

// LedgerService is the only component permitted to mutate balances. Every
// money movement goes through Commit, which writes the transaction row and
// all posting rows in one all-or-nothing database transaction.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Commit validates and durably records one transaction with its postings.
// Accounts named in guarded must not be driven below zero; the check runs
// after the row locks are held, so two concurrent debits of one account are
// totally ordered and the second sees the first's balance.
func (s *LedgerService) Commit(ctx context.Context, txn *models.Transaction, postings []models.Posting, guarded ...string) (*models.Transaction, error) {
	if err := validatePostings(postings); err != nil {
		return nil, err
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ledger commit: %w", err)
	}
	defer dbTx.Rollback()

	// Lock every referenced account in ascending id order to avoid
	// deadlocks between commits that touch the same accounts.
	accounts, err := s.lockAccounts(ctx, dbTx, postings)
	if err != nil {
		return nil, err
	}

	deltas := make(map[string]int64)
	for _, p := range postings {
		acct, ok := accounts[p.AccountID]
		if !ok || acct.Currency != p.Currency {
			return nil, ErrInvalidLedgerEntry
		}
		deltas[p.AccountID] += p.Amount
	}

	guard := make(map[string]bool, len(guarded))
	for _, id := range guarded {
		guard[id] = true
	}
	for id, delta := range deltas {
		if guard[id] && accounts[id].Balance+delta < 0 {
			return nil, ErrInsufficientFunds
		}
	}

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.CreatedAt = time.Now().UTC()

	if err := s.insertTransaction(ctx, dbTx, txn); err != nil {
		return nil, err
	}

	for i := range postings {
		postings[i].TransactionID = txn.ID
		postings[i].CreatedAt = txn.CreatedAt
		if err := s.insertPosting(ctx, dbTx, &postings[i]); err != nil {
			return nil, err
		}
	}

	// Keep the cached balance column in step with the postings while the
	// row locks are still held.
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		acct := accounts[id]
		if err := s.updateAccountBalance(ctx, dbTx, acct.ID, acct.Balance+deltas[id], acct.Version); err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ledger transaction: %w", err)
	}

	log.Printf("[LEDGER] Committed %s transaction %s (%d postings)", txn.Type, txn.ID, len(postings))
	txn.Postings = postings
	return txn, nil
}

// validatePostings enforces the zero-sum and single-currency invariants
// before anything is written.
func validatePostings(postings []models.Posting) error {
	if len(postings) == 0 {
		return ErrInvalidLedgerEntry
	}

	sum := models.NewMoney(0, postings[0].Currency)
	var err error
	for _, p := range postings {
		if sum, err = sum.Add(models.NewMoney(p.Amount, p.Currency)); err != nil {
			return ErrInvalidLedgerEntry
		}
	}
	if sum.Amount != 0 {
		return ErrInvalidLedgerEntry
	}
	return nil
}

func (s *LedgerService) lockAccounts(ctx context.Context, dbTx *sql.Tx, postings []models.Posting) (map[string]*models.Account, error) {
	ids := make([]string, 0, len(postings))
	seen := make(map[string]bool)
	for _, p := range postings {
		if !seen[p.AccountID] {
			seen[p.AccountID] = true
			ids = append(ids, p.AccountID)
		}
	}
	sort.Strings(ids)

	accounts := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		acct, err := s.lockAccount(ctx, dbTx, id)
		if err == sql.ErrNoRows {
			return nil, ErrInvalidLedgerEntry
		}
		if err != nil {
			return nil, fmt.Errorf("lock account %s: %w", id, err)
		}
		accounts[id] = acct
	}
	return accounts, nil
}

func (s *LedgerService) lockAccount(ctx context.Context, dbTx *sql.Tx, accountID string) (*models.Account, error) {
	var account models.Account
	err := dbTx.QueryRowContext(ctx, `
		SELECT id, owner_id, organization_id, currency, balance, version
		FROM finance_accounts
		WHERE id = $1
		FOR UPDATE`, accountID).
		Scan(&account.ID, &account.OwnerID, &account.OrganizationID, &account.Currency, &account.Balance, &account.Version)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *LedgerService) insertTransaction(ctx context.Context, dbTx *sql.Tx, txn *models.Transaction) error {
	_, err := dbTx.ExecContext(ctx, `
		INSERT INTO finance_transactions (id, type, description, reversed_transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		txn.ID, txn.Type, txn.Description, txn.ReversedTransactionID, txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *LedgerService) insertPosting(ctx context.Context, dbTx *sql.Tx, p *models.Posting) error {
	err := dbTx.QueryRowContext(ctx, `
		INSERT INTO finance_postings (transaction_id, account_id, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.TransactionID, p.AccountID, p.Amount, p.Currency, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert posting: %w", err)
	}
	return nil
}

func (s *LedgerService) updateAccountBalance(ctx context.Context, dbTx *sql.Tx, accountID string, newBalance int64, version int) error {
	result, err := dbTx.ExecContext(ctx, `
		UPDATE finance_accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, time.Now().UTC(), accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", accountID)
	}
	return nil
}

// Get loads a committed transaction with its postings.
func (s *LedgerService) Get(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, description, reversed_transaction_id, created_at
		FROM finance_transactions
		WHERE id = $1`, transactionID).
		Scan(&txn.ID, &txn.Type, &txn.Description, &txn.ReversedTransactionID, &txn.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}

	txn.Postings, err = s.fetchPostings(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// IsReversed reports whether a REVERSAL already points at transactionID.
func (s *LedgerService) IsReversed(ctx context.Context, transactionID string) (bool, error) {
	var reversed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM finance_transactions WHERE reversed_transaction_id = $1)`,
		transactionID).Scan(&reversed)
	if err != nil {
		return false, fmt.Errorf("check reversal: %w", err)
	}
	return reversed, nil
}

// ListByAccount pages through an account's transactions newest first. The
// cursor is opaque to callers and keyed on (created_at, id) so pages stay
// stable under concurrent inserts.
func (s *LedgerService) ListByAccount(ctx context.Context, accountID string, cursor string, limit int) ([]models.Transaction, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT DISTINCT t.id, t.type, t.description, t.reversed_transaction_id, t.created_at
		FROM finance_transactions t
		JOIN finance_postings p ON p.transaction_id = t.id
		WHERE p.account_id = $1`
	args := []any{accountID}

	if cursor != "" {
		createdAt, id, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		query += ` AND (t.created_at, t.id) < ($2, $3)`
		args = append(args, createdAt, id)
	}
	query += fmt.Sprintf(` ORDER BY t.created_at DESC, t.id DESC LIMIT %d`, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var txn models.Transaction
		if err := rows.Scan(&txn.ID, &txn.Type, &txn.Description, &txn.ReversedTransactionID, &txn.CreatedAt); err != nil {
			return nil, "", fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(txns) > limit {
		txns = txns[:limit]
		last := txns[len(txns)-1]
		nextCursor = encodeCursor(last.CreatedAt, last.ID)
	}

	for i := range txns {
		if txns[i].Postings, err = s.fetchPostings(ctx, txns[i].ID); err != nil {
			return nil, "", err
		}
	}
	return txns, nextCursor, nil
}

func (s *LedgerService) fetchPostings(ctx context.Context, transactionID string) ([]models.Posting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.transaction_id, p.account_id, p.amount, p.currency, p.created_at, a.owner_id
		FROM finance_postings p
		JOIN finance_accounts a ON a.id = p.account_id
		WHERE p.transaction_id = $1
		ORDER BY p.id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("fetch postings: %w", err)
	}
	defer rows.Close()

	var postings []models.Posting
	for rows.Next() {
		var p models.Posting
		if err := rows.Scan(&p.ID, &p.TransactionID, &p.AccountID, &p.Amount, &p.Currency, &p.CreatedAt, &p.AccountOwnerID); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// Reconcile recomputes an account's balance from its postings. The cached
// balance column on finance_accounts must always equal this sum.
func (s *LedgerService) Reconcile(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM finance_postings WHERE account_id = $1`,
		accountID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("reconcile account %s: %w", accountID, err)
	}
	return balance, nil
}

func encodeCursor(createdAt time.Time, id string) string {
	raw := fmt.Sprintf("%d|%s", createdAt.UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("invalid cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor")
	}
	return time.Unix(0, nanos).UTC(), parts[1], nil
}
