package services

import (
	"context"
	"sort"

	"github.com/finbase/backend/internal/models"
)

// BalanceRow is one per-currency balance line for the balance endpoint.
type BalanceRow struct {
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
	Code     string  `json:"code"`
}

// BalanceService is the read path over accounts and the ledger. It never
// writes anything.
type BalanceService struct {
	registry *AccountRegistry
	ledger   *LedgerService
}

func NewBalanceService(registry *AccountRegistry, ledger *LedgerService) *BalanceService {
	return &BalanceService{registry: registry, ledger: ledger}
}

// Balances returns one row per account the owner holds in the
// organization, optionally filtered to a single currency. Balances come
// from the cached column, which LedgerService keeps equal to the posting
// sum.
func (s *BalanceService) Balances(ctx context.Context, ownerID, organizationID int, currency string) ([]BalanceRow, error) {
	accounts, err := s.registry.ListByOwner(ctx, ownerID, organizationID, currency)
	if err != nil {
		return nil, err
	}

	rows := make([]BalanceRow, 0, len(accounts))
	for _, acct := range accounts {
		rows = append(rows, BalanceRow{
			Currency: acct.Currency,
			Balance:  models.NewMoney(acct.Balance, acct.Currency).MajorUnits(),
			Code:     acct.Code,
		})
	}
	return rows, nil
}

// History pages through the owner's transactions newest first. With a
// currency filter this is a straight delegation to the ledger's paginated
// listing; without one the owner's per-currency streams are merged and the
// merged view is served as a single page.
func (s *BalanceService) History(ctx context.Context, ownerID, organizationID int, currency, cursor string, limit int) ([]models.Transaction, string, error) {
	accounts, err := s.registry.ListByOwner(ctx, ownerID, organizationID, currency)
	if err != nil {
		return nil, "", err
	}
	if len(accounts) == 0 {
		return []models.Transaction{}, "", nil
	}

	if len(accounts) == 1 {
		return s.ledger.ListByAccount(ctx, accounts[0].ID, cursor, limit)
	}

	var merged []models.Transaction
	for _, acct := range accounts {
		txns, _, err := s.ledger.ListByAccount(ctx, acct.ID, cursor, limit)
		if err != nil {
			return nil, "", err
		}
		merged = append(merged, txns...)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID > merged[j].ID
		}
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	nextCursor := ""
	if len(merged) > 0 && limit > 0 && len(merged) == limit {
		last := merged[len(merged)-1]
		nextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return merged, nextCursor, nil
}
