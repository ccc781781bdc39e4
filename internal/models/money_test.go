package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoney_Add(t *testing.T) {
	t.Run("same currency", func(t *testing.T) {
		sum, err := NewMoney(1000, "ETP").Add(NewMoney(250, "ETP"))
		assert.NoError(t, err)
		assert.Equal(t, int64(1250), sum.Amount)
		assert.Equal(t, "ETP", sum.Currency)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		_, err := NewMoney(1000, "ETP").Add(NewMoney(250, "CNY"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency mismatch")
	})
}

func TestMoney_Sub(t *testing.T) {
	t.Run("same currency", func(t *testing.T) {
		diff, err := NewMoney(1000, "CNY").Sub(NewMoney(1500, "CNY"))
		assert.NoError(t, err)
		assert.Equal(t, int64(-500), diff.Amount)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		_, err := NewMoney(1000, "CNY").Sub(NewMoney(1, "ETP"))
		assert.Error(t, err)
	})
}

func TestMoney_Negate(t *testing.T) {
	assert.Equal(t, int64(-10000), NewMoney(10000, "ETP").Negate().Amount)
	assert.Equal(t, int64(10000), NewMoney(-10000, "ETP").Negate().Amount)
}

func TestFromMajorUnits(t *testing.T) {
	tests := []struct {
		name  string
		major float64
		minor int64
	}{
		{"whole units", 100.00, 10000},
		{"with cents", 12.34, 1234},
		{"single cent", 0.01, 1},
		{"float noise rounds", 19.99, 1999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := FromMajorUnits(tt.major, "ETP")
			assert.Equal(t, tt.minor, m.Amount)
		})
	}
}

func TestMoney_MajorUnits(t *testing.T) {
	assert.Equal(t, 100.00, NewMoney(10000, "ETP").MajorUnits())
	assert.Equal(t, -0.5, NewMoney(-50, "ETP").MajorUnits())
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "123.45 ETP", NewMoney(12345, "ETP").String())
	assert.Equal(t, "0.05 CNY", NewMoney(5, "CNY").String())
}
