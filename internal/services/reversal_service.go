package services

import (
	"context"
	"errors"
	"log"

	"github.com/lib/pq"

	"github.com/finbase/backend/internal/models"
)

// ReversalService undoes a committed transaction by committing a
// compensating one. History is never edited: the original rows stay, the
// reversal's postings invert them leg for leg.
type ReversalService struct {
	ledger *LedgerService
}

func NewReversalService(ledger *LedgerService) *ReversalService {
	return &ReversalService{ledger: ledger}
}

// Reverse builds and commits the compensating transaction for
// transactionID. Who may reverse is the caller's policy; only the ledger
// rules are enforced here. A transaction can be reversed at most once, and
// a reversal itself never can.
func (s *ReversalService) Reverse(ctx context.Context, actingUserID int, transactionID, reason string) (*models.Transaction, error) {
	original, err := s.ledger.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if original.Type == models.TransactionTypeReversal {
		return nil, ErrCannotReverseAReversal
	}

	reversed, err := s.ledger.IsReversed(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if reversed {
		return nil, ErrAlreadyReversed
	}

	// Inverting a zero-sum posting set is itself zero-sum.
	postings := make([]models.Posting, 0, len(original.Postings))
	for _, p := range original.Postings {
		postings = append(postings, models.Posting{
			AccountID: p.AccountID,
			Amount:    -p.Amount,
			Currency:  p.Currency,
		})
	}

	txn := &models.Transaction{
		Type:                  models.TransactionTypeReversal,
		Description:           reason,
		ReversedTransactionID: &transactionID,
	}

	committed, err := s.ledger.Commit(ctx, txn, postings)
	if err != nil {
		// Two concurrent reversals race past the pre-check; the partial
		// unique index on reversed_transaction_id decides the winner.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, ErrAlreadyReversed
		}
		return nil, err
	}

	log.Printf("[REVERSAL] User %d reversed transaction %s with %s", actingUserID, transactionID, committed.ID)
	return committed, nil
}
