package services

import (
	"context"
	"fmt"
	"log"

	"github.com/finbase/backend/internal/models"
)

// TransferService orchestrates peer-to-peer transfers and treasury
// deposits. It owns no state: every effect is a single LedgerService
// commit, so a failure at any step leaves the ledger untouched.
type TransferService struct {
	registry *AccountRegistry
	pins     *PinService
	ledger   *LedgerService
	identity Identity
}

func NewTransferService(registry *AccountRegistry, pins *PinService, ledger *LedgerService, identity Identity) *TransferService {
	return &TransferService{
		registry: registry,
		pins:     pins,
		ledger:   ledger,
		identity: identity,
	}
}

// Transfer moves amount from the sender to the user behind recipientEmail
// within one organization. Validation order is fixed: amount, recipient,
// self-transfer, PIN, accounts, funds. The insufficient-funds check runs
// inside the ledger commit's locked section, so two concurrent transfers
// draining one account cannot both pass it.
func (s *TransferService) Transfer(ctx context.Context, senderUserID, organizationID int, recipientEmail string, amount models.Money, pin, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	recipient, err := s.identity.ResolveEmail(ctx, recipientEmail)
	if err != nil {
		return nil, err
	}

	if recipient.ID == senderUserID {
		return nil, ErrSelfTransfer
	}

	if err := s.pins.Verify(ctx, senderUserID, pin); err != nil {
		return nil, err
	}

	senderAccount, err := s.registry.GetOrCreate(ctx, senderUserID, organizationID, amount.Currency)
	if err != nil {
		return nil, fmt.Errorf("sender account: %w", err)
	}
	recipientAccount, err := s.registry.GetOrCreate(ctx, recipient.ID, organizationID, amount.Currency)
	if err != nil {
		return nil, fmt.Errorf("recipient account: %w", err)
	}

	if description == "" {
		description = fmt.Sprintf("Transfer to %s", recipient.Email)
	}

	txn := &models.Transaction{
		Type:        models.TransactionTypeTransfer,
		Description: description,
	}
	postings := []models.Posting{
		{AccountID: senderAccount.ID, Amount: amount.Negate().Amount, Currency: amount.Currency},
		{AccountID: recipientAccount.ID, Amount: amount.Amount, Currency: amount.Currency},
	}

	committed, err := s.ledger.Commit(ctx, txn, postings, senderAccount.ID)
	if err != nil {
		return nil, err
	}

	log.Printf("[TRANSFER] User %d sent %s to user %d (tx %s)", senderUserID, amount, recipient.ID, committed.ID)
	return committed, nil
}

// Deposit funds a member's account from the organization's treasury
// account. The treasury leg keeps the transaction zero-sum; the treasury
// account is deliberately unguarded and may run negative.
func (s *TransferService) Deposit(ctx context.Context, ownerID, organizationID int, amount models.Money, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	treasury, err := s.registry.GetOrCreate(ctx, models.TreasuryOwnerID, organizationID, amount.Currency)
	if err != nil {
		return nil, fmt.Errorf("treasury account: %w", err)
	}
	account, err := s.registry.GetOrCreate(ctx, ownerID, organizationID, amount.Currency)
	if err != nil {
		return nil, fmt.Errorf("member account: %w", err)
	}

	if description == "" {
		description = "Account funding"
	}

	txn := &models.Transaction{
		Type:        models.TransactionTypeDeposit,
		Description: description,
	}
	postings := []models.Posting{
		{AccountID: treasury.ID, Amount: amount.Negate().Amount, Currency: amount.Currency},
		{AccountID: account.ID, Amount: amount.Amount, Currency: amount.Currency},
	}

	committed, err := s.ledger.Commit(ctx, txn, postings)
	if err != nil {
		return nil, err
	}

	log.Printf("[TRANSFER] Deposited %s to user %d in org %d (tx %s)", amount, ownerID, organizationID, committed.ID)
	return committed, nil
}
