package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/finbase/backend/internal/models"
)

func accountRows(id string, ownerID, orgID int, currency string, balance int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "organization_id", "currency", "balance", "version"}).
		AddRow(id, ownerID, orgID, currency, balance, version)
}

func TestLedgerService_Commit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)
	ctx := context.Background()

	t.Run("successful commit", func(t *testing.T) {
		postings := []models.Posting{
			{AccountID: "acc-a", Amount: -1000, Currency: "ETP"},
			{AccountID: "acc-b", Amount: 1000, Currency: "ETP"},
		}

		mock.ExpectBegin()

		// Accounts locked in ascending id order
		mock.ExpectQuery("SELECT id, owner_id, organization_id, currency, balance, version FROM finance_accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("acc-a").
			WillReturnRows(accountRows("acc-a", 1, 1, "ETP", 5000, 1))
		mock.ExpectQuery("SELECT id, owner_id, organization_id, currency, balance, version FROM finance_accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("acc-b").
			WillReturnRows(accountRows("acc-b", 2, 1, "ETP", 2000, 3))

		mock.ExpectExec("INSERT INTO finance_transactions").
			WithArgs(sqlmock.AnyArg(), models.TransactionTypeTransfer, "lunch", nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("INSERT INTO finance_postings").
			WithArgs(sqlmock.AnyArg(), "acc-a", int64(-1000), "ETP", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery("INSERT INTO finance_postings").
			WithArgs(sqlmock.AnyArg(), "acc-b", int64(1000), "ETP", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

		mock.ExpectExec("UPDATE finance_accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
			WithArgs(int64(4000), sqlmock.AnyArg(), "acc-a", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE finance_accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
			WithArgs(int64(3000), sqlmock.AnyArg(), "acc-b", 3).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		txn := &models.Transaction{Type: models.TransactionTypeTransfer, Description: "lunch"}
		committed, err := service.Commit(ctx, txn, postings, "acc-a")
		assert.NoError(t, err)
		assert.NotEmpty(t, committed.ID)
		assert.Len(t, committed.Postings, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds on guarded account", func(t *testing.T) {
		postings := []models.Posting{
			{AccountID: "acc-a", Amount: -6000, Currency: "ETP"},
			{AccountID: "acc-b", Amount: 6000, Currency: "ETP"},
		}

		mock.ExpectBegin()
		mock.ExpectQuery("FROM finance_accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("acc-a").
			WillReturnRows(accountRows("acc-a", 1, 1, "ETP", 5000, 1))
		mock.ExpectQuery("FROM finance_accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("acc-b").
			WillReturnRows(accountRows("acc-b", 2, 1, "ETP", 2000, 1))
		mock.ExpectRollback()

		txn := &models.Transaction{Type: models.TransactionTypeTransfer}
		_, err := service.Commit(ctx, txn, postings, "acc-a")
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unguarded account may go negative", func(t *testing.T) {
		postings := []models.Posting{
			{AccountID: "acc-a", Amount: -6000, Currency: "ETP"},
			{AccountID: "acc-b", Amount: 6000, Currency: "ETP"},
		}

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("acc-a").
			WillReturnRows(accountRows("acc-a", 0, 1, "ETP", 0, 1))
		mock.ExpectQuery("FOR UPDATE").WithArgs("acc-b").
			WillReturnRows(accountRows("acc-b", 2, 1, "ETP", 0, 1))
		mock.ExpectExec("INSERT INTO finance_transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("INSERT INTO finance_postings").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery("INSERT INTO finance_postings").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectExec("UPDATE finance_accounts").
			WithArgs(int64(-6000), sqlmock.AnyArg(), "acc-a", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE finance_accounts").
			WithArgs(int64(6000), sqlmock.AnyArg(), "acc-b", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		txn := &models.Transaction{Type: models.TransactionTypeDeposit}
		_, err := service.Commit(ctx, txn, postings)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects empty posting set", func(t *testing.T) {
		txn := &models.Transaction{Type: models.TransactionTypeTransfer}
		_, err := service.Commit(ctx, txn, nil)
		assert.ErrorIs(t, err, ErrInvalidLedgerEntry)
	})

	t.Run("rejects unbalanced postings", func(t *testing.T) {
		postings := []models.Posting{
			{AccountID: "acc-a", Amount: -1000, Currency: "ETP"},
			{AccountID: "acc-b", Amount: 999, Currency: "ETP"},
		}
		txn := &models.Transaction{Type: models.TransactionTypeTransfer}
		_, err := service.Commit(ctx, txn, postings)
		assert.ErrorIs(t, err, ErrInvalidLedgerEntry)
	})

	t.Run("rejects mixed currencies", func(t *testing.T) {
		postings := []models.Posting{
			{AccountID: "acc-a", Amount: -1000, Currency: "ETP"},
			{AccountID: "acc-b", Amount: 1000, Currency: "CNY"},
		}
		txn := &models.Transaction{Type: models.TransactionTypeTransfer}
		_, err := service.Commit(ctx, txn, postings)
		assert.ErrorIs(t, err, ErrInvalidLedgerEntry)
	})

	t.Run("rejects posting against missing account", func(t *testing.T) {
		postings := []models.Posting{
			{AccountID: "acc-a", Amount: -1000, Currency: "ETP"},
			{AccountID: "acc-b", Amount: 1000, Currency: "ETP"},
		}

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("acc-a").
			WillReturnError(errNoRows())
		mock.ExpectRollback()

		txn := &models.Transaction{Type: models.TransactionTypeTransfer}
		_, err := service.Commit(ctx, txn, postings)
		assert.ErrorIs(t, err, ErrInvalidLedgerEntry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects posting currency that differs from account", func(t *testing.T) {
		postings := []models.Posting{
			{AccountID: "acc-a", Amount: -1000, Currency: "CNY"},
			{AccountID: "acc-b", Amount: 1000, Currency: "CNY"},
		}

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("acc-a").
			WillReturnRows(accountRows("acc-a", 1, 1, "ETP", 5000, 1))
		mock.ExpectQuery("FOR UPDATE").WithArgs("acc-b").
			WillReturnRows(accountRows("acc-b", 2, 1, "CNY", 0, 1))
		mock.ExpectRollback()

		txn := &models.Transaction{Type: models.TransactionTypeTransfer}
		_, err := service.Commit(ctx, txn, postings)
		assert.ErrorIs(t, err, ErrInvalidLedgerEntry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)
	ctx := context.Background()

	t.Run("existing transaction with postings", func(t *testing.T) {
		createdAt := time.Now().UTC()
		mock.ExpectQuery("SELECT id, type, description, reversed_transaction_id, created_at FROM finance_transactions WHERE id = \\$1").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "type", "description", "reversed_transaction_id", "created_at"}).
				AddRow("tx-1", "TRANSFER", "lunch", nil, createdAt))
		mock.ExpectQuery("FROM finance_postings p JOIN finance_accounts a").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "account_id", "amount", "currency", "created_at", "owner_id"}).
				AddRow(1, "tx-1", "acc-a", int64(-1000), "ETP", createdAt, 1).
				AddRow(2, "tx-1", "acc-b", int64(1000), "ETP", createdAt, 2))

		txn, err := service.Get(ctx, "tx-1")
		assert.NoError(t, err)
		assert.Equal(t, "TRANSFER", txn.Type)
		assert.Len(t, txn.Postings, 2)

		var sum int64
		for _, p := range txn.Postings {
			sum += p.Amount
		}
		assert.Zero(t, sum)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing transaction", func(t *testing.T) {
		mock.ExpectQuery("FROM finance_transactions WHERE id = \\$1").
			WithArgs("tx-missing").
			WillReturnError(errNoRows())

		_, err := service.Get(ctx, "tx-missing")
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestLedgerService_Reconcile(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM finance_postings WHERE account_id = \\$1").
		WithArgs("acc-a").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(4200)))

	balance, err := service.Reconcile(context.Background(), "acc-a")
	assert.NoError(t, err)
	assert.Equal(t, int64(4200), balance)
}

func TestCursorRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	cursor := encodeCursor(createdAt, "tx-42")

	gotTime, gotID, err := decodeCursor(cursor)
	assert.NoError(t, err)
	assert.True(t, createdAt.Equal(gotTime))
	assert.Equal(t, "tx-42", gotID)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []string{"not-base64!", "aGVsbG8", ""}
	for _, cursor := range tests {
		_, _, err := decodeCursor(cursor)
		assert.Error(t, err, "cursor %q should not decode", cursor)
	}
}
