package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestPinService_SetPin(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	t.Run("stores hash after password re-verification", func(t *testing.T) {
		identity := new(MockIdentity)
		identity.On("VerifyPassword", mock.Anything, 7, "hunter22").Return(nil)

		dbMock.ExpectExec("INSERT INTO finance_pins").
			WithArgs(7, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		service := NewPinService(db, identity, nil)
		err := service.SetPin(context.Background(), 7, "1234", "hunter22")
		assert.NoError(t, err)
		assert.NoError(t, dbMock.ExpectationsWereMet())
		identity.AssertExpectations(t)
	})

	t.Run("rejects wrong password without touching storage", func(t *testing.T) {
		identity := new(MockIdentity)
		identity.On("VerifyPassword", mock.Anything, 7, "wrong").Return(ErrInvalidPassword)

		service := NewPinService(db, identity, nil)
		err := service.SetPin(context.Background(), 7, "1234", "wrong")
		assert.ErrorIs(t, err, ErrInvalidPassword)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestPinService_Verify(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewPinService(db, new(MockIdentity), nil)
	ctx := context.Background()

	storedHash, err := hashSecret("1234")
	assert.NoError(t, err)

	t.Run("correct pin", func(t *testing.T) {
		dbMock.ExpectQuery("SELECT hash FROM finance_pins WHERE user_id = \\$1").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"hash"}).AddRow(storedHash))

		assert.NoError(t, service.Verify(ctx, 7, "1234"))
	})

	t.Run("wrong pin", func(t *testing.T) {
		dbMock.ExpectQuery("SELECT hash FROM finance_pins").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"hash"}).AddRow(storedHash))

		assert.ErrorIs(t, service.Verify(ctx, 7, "4321"), ErrPinMismatch)
	})

	t.Run("pin not set", func(t *testing.T) {
		dbMock.ExpectQuery("SELECT hash FROM finance_pins").
			WithArgs(9).
			WillReturnError(errNoRows())

		assert.ErrorIs(t, service.Verify(ctx, 9, "1234"), ErrPinNotSet)
	})
}

func TestHashSecret_RoundTrip(t *testing.T) {
	hash, err := hashSecret("1234")
	assert.NoError(t, err)
	assert.NotContains(t, hash, "1234")

	assert.True(t, verifySecret("1234", hash))
	assert.False(t, verifySecret("4321", hash))
	assert.False(t, verifySecret("1234", "malformed"))
}

func TestHashSecret_SaltsDiffer(t *testing.T) {
	first, err := hashSecret("1234")
	assert.NoError(t, err)
	second, err := hashSecret("1234")
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}
