package models

import (
	"time"
)

// Account is one ledger account, unique per (owner, organization, currency).
// The balance column is a cache maintained under the account row lock; the
// postings ledger is the source of truth and the cache is always
// recomputable from it.
type Account struct {
	ID             string    `json:"id" db:"id"`
	OwnerID        int       `json:"owner_id" db:"owner_id"`
	OrganizationID int       `json:"organization_id" db:"organization_id"`
	Currency       string    `json:"currency" db:"currency"`
	Code           string    `json:"code" db:"code"`
	Balance        int64     `json:"balance" db:"balance"` // in minor units
	Version        int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// TreasuryOwnerID is the reserved owner for each organization's funding
// account. Deposits are balanced against it so every transaction stays
// zero-sum.
const TreasuryOwnerID = 0
