package services

import (
	"context"
	"database/sql"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/mock"

	"github.com/finbase/backend/internal/models"
)

func init() {
	// Cheap argon2 parameters so hashing in tests stays fast.
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 8*1024)
	viper.Set("argon2.threads", 1)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
}

func errNoRows() error {
	return sql.ErrNoRows
}

type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) ResolveEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockIdentity) VerifyPassword(ctx context.Context, userID int, password string) error {
	args := m.Called(ctx, userID, password)
	return args.Error(0)
}
