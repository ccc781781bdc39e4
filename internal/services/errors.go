package services

import "errors"

// Sentinel errors surfaced by the finance engine. Handlers map these to
// HTTP status codes; everything else propagates as an internal error.
var (
	// Validation
	ErrInvalidAmount      = errors.New("amount must be a positive integer in minor units")
	ErrInvalidLedgerEntry = errors.New("ledger entry is not balanced or mixes currencies")

	// Authorization
	ErrPinNotSet          = errors.New("transaction PIN has not been set")
	ErrPinMismatch        = errors.New("incorrect transaction PIN")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrTooManyPinAttempts = errors.New("too many PIN attempts, try again later")

	// Business rules
	ErrSelfTransfer           = errors.New("Cannot transfer to self")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrRecipientNotFound      = errors.New("recipient not found")
	ErrAccountNotFound        = errors.New("account not found")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrAlreadyReversed        = errors.New("transaction has already been reversed")
	ErrCannotReverseAReversal = errors.New("a reversal cannot be reversed")
)
