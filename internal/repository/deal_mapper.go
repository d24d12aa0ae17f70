package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/zhirschtritt/deals/internal/domain"
)

const dealColumns = "id, name, email, amount, created_at"

// dealRow mirrors a row of the deals table.
type dealRow struct {
	ID        int64
	Name      string
	Email     string
	Amount    decimal.NullDecimal
	CreatedAt time.Time
}

// toRow keeps only the writable columns; id and created_at belong to the store.
func toRow(in domain.DealInput) dealRow {
	row := dealRow{
		Name:  in.Name,
		Email: in.Email,
	}
	if in.Amount != nil {
		row.Amount = decimal.NewNullDecimal(*in.Amount)
	}
	return row
}

func fromRow(row dealRow) *domain.Deal {
	deal := &domain.Deal{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		CreatedAt: row.CreatedAt,
	}
	if row.Amount.Valid {
		amount := row.Amount.Decimal
		deal.Amount = &amount
	}
	return deal
}

// writeArgs are the values for name, email and amount, in that order.
func (r dealRow) writeArgs() []any {
	return []any{r.Name, r.Email, r.Amount}
}

func (r *dealRow) scanDest() []any {
	return []any{&r.ID, &r.Name, &r.Email, &r.Amount, &r.CreatedAt}
}
