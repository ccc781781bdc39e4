package models

import (
	"time"
)

// Transaction types. A REVERSAL points back at the transaction it inverts;
// it is never itself reversible.
const (
	TransactionTypeTransfer = "TRANSFER"
	TransactionTypeDeposit  = "DEPOSIT"
	TransactionTypeReversal = "REVERSAL"
)

// Transaction is one logical money-movement event. Rows are append-only:
// committed transactions are never edited or deleted, mistakes are undone
// by committing a compensating REVERSAL.
type Transaction struct {
	ID                    string    `json:"id" db:"id"`
	Type                  string    `json:"type" db:"type"`
	Description           string    `json:"description" db:"description"`
	ReversedTransactionID *string   `json:"reversed_transaction_id,omitempty" db:"reversed_transaction_id"`
	Postings              []Posting `json:"postings,omitempty"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
}

// Posting is one signed leg of a transaction: debit negative, credit
// positive, amount in minor units. All postings of one transaction share
// one currency and sum to exactly zero.
type Posting struct {
	ID            int64     `json:"id" db:"id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	AccountID     string    `json:"account_id" db:"account_id"`
	Amount        int64     `json:"amount" db:"amount"`
	Currency      string    `json:"currency" db:"currency"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`

	// AccountOwnerID is denormalized onto fetched postings for API
	// responses; it is not a column of finance_postings.
	AccountOwnerID int `json:"account_owner_id,omitempty"`
}
