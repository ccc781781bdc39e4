package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/finbase/backend/internal/models"
)

// uniqueViolation is the Postgres error code raised when the
// (owner_id, organization_id, currency) constraint rejects an insert.
const uniqueViolation = "23505"

// AccountRegistry owns account lookup and lazy creation. Accounts are
// never deleted; at most one exists per (owner, organization, currency).
type AccountRegistry struct {
	db *sql.DB
}

func NewAccountRegistry(db *sql.DB) *AccountRegistry {
	return &AccountRegistry{db: db}
}

// GetOrCreate returns the unique account for the key, creating it with a
// zero balance on first need. Concurrent callers racing on the same key
// cannot create duplicates: the unique constraint rejects the loser, who
// retries the lookup.
func (r *AccountRegistry) GetOrCreate(ctx context.Context, ownerID, organizationID int, currency string) (*models.Account, error) {
	const maxAttempts = 3

	for attempt := 0; attempt < maxAttempts; attempt++ {
		account, err := r.Find(ctx, ownerID, organizationID, currency)
		if err == nil {
			return account, nil
		}
		if err != ErrAccountNotFound {
			return nil, err
		}

		account, err = r.create(ctx, ownerID, organizationID, currency)
		if err == nil {
			log.Printf("[REGISTRY] Created account %s (%s) for owner %d in org %d", account.ID, currency, ownerID, organizationID)
			return account, nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			// Lost the race; the winner's row is there for the next lookup.
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("account upsert for owner %d did not converge", ownerID)
}

// Find looks up the unique account, returning ErrAccountNotFound if the
// owner has no account in that currency yet.
func (r *AccountRegistry) Find(ctx context.Context, ownerID, organizationID int, currency string) (*models.Account, error) {
	var account models.Account
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, organization_id, currency, code, balance, version, created_at
		FROM finance_accounts
		WHERE owner_id = $1 AND organization_id = $2 AND currency = $3`,
		ownerID, organizationID, currency).
		Scan(&account.ID, &account.OwnerID, &account.OrganizationID, &account.Currency,
			&account.Code, &account.Balance, &account.Version, &account.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &account, nil
}

// ListByOwner returns all of an owner's accounts in one organization,
// optionally filtered to a single currency.
func (r *AccountRegistry) ListByOwner(ctx context.Context, ownerID, organizationID int, currency string) ([]models.Account, error) {
	query := `
		SELECT id, owner_id, organization_id, currency, code, balance, version, created_at
		FROM finance_accounts
		WHERE owner_id = $1 AND organization_id = $2`
	args := []any{ownerID, organizationID}
	if currency != "" {
		query += ` AND currency = $3`
		args = append(args, currency)
	}
	query += ` ORDER BY currency`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.OwnerID, &account.OrganizationID, &account.Currency,
			&account.Code, &account.Balance, &account.Version, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *AccountRegistry) create(ctx context.Context, ownerID, organizationID int, currency string) (*models.Account, error) {
	var account models.Account
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO finance_accounts (id, owner_id, organization_id, currency, code, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 1, NOW(), NOW())
		RETURNING id, owner_id, organization_id, currency, code, balance, version, created_at`,
		uuid.NewString(), ownerID, organizationID, currency, generateAccountCode()).
		Scan(&account.ID, &account.OwnerID, &account.OrganizationID, &account.Currency,
			&account.Code, &account.Balance, &account.Version, &account.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func generateAccountCode() string {
	const digits = "0123456789"
	b := make([]byte, 10)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}
