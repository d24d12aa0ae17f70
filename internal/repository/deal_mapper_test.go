package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhirschtritt/deals/internal/domain"
)

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestToRow_WritesOnlyMutableFields(t *testing.T) {
	row := toRow(domain.DealInput{Name: "Ada", Email: "ada@x.com", Amount: decimalPtr("12.5")})

	assert.Zero(t, row.ID)
	assert.True(t, row.CreatedAt.IsZero())
	assert.Equal(t, "Ada", row.Name)
	assert.Equal(t, "ada@x.com", row.Email)
	assert.True(t, row.Amount.Valid)
	assert.Equal(t, []any{"Ada", "ada@x.com", row.Amount}, row.writeArgs())
}

func TestToRow_AbsentAmountIsNull(t *testing.T) {
	row := toRow(domain.DealInput{Name: "Ada", Email: "ada@x.com"})
	assert.False(t, row.Amount.Valid)

	v, err := row.Amount.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMapper_RoundTrip(t *testing.T) {
	inputs := []domain.DealInput{
		{Name: "Ada", Email: "ada@x.com"},
		{Name: "Grace Hopper", Email: "grace@navy.mil", Amount: decimalPtr("0.01")},
		{Name: "Barbara", Email: "barbara@x.com", Amount: decimalPtr("1234.56")},
		{Name: "Alan", Email: "alan@bletchley.uk", Amount: decimalPtr("9999999999.99")},
	}

	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, in := range inputs {
		require.NoError(t, domain.ValidateDealInput(in))

		row := toRow(in)
		// the store assigns these
		row.ID = int64(i + 1)
		row.CreatedAt = createdAt

		deal := fromRow(row)
		assert.Equal(t, int64(i+1), deal.ID)
		assert.Equal(t, createdAt, deal.CreatedAt)

		got := deal.Input()
		assert.Equal(t, in.Name, got.Name)
		assert.Equal(t, in.Email, got.Email)
		if in.Amount == nil {
			assert.Nil(t, got.Amount)
		} else {
			require.NotNil(t, got.Amount)
			assert.True(t, in.Amount.Equal(*got.Amount))
		}
	}
}
