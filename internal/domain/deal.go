package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrDealNotFound   = errors.New("deal not found")
	ErrDuplicateEmail = errors.New("a deal with this email already exists")
	ErrCreationFailed = errors.New("failed to create deal")
	ErrMalformedInput = errors.New("malformed deal input")
)

func init() {
	// amounts go over the wire as JSON numbers, matching what DecodeDealInput accepts
	decimal.MarshalJSONWithoutQuotes = true
}

type Deal struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DealInput is the caller-supplied part of a Deal. ID and CreatedAt are
// always assigned by the store.
type DealInput struct {
	Name   string           `json:"name" validate:"required,max=255"`
	Email  string           `json:"email" validate:"required,email,max=255"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// Input returns the mutable fields of d.
func (d *Deal) Input() DealInput {
	return DealInput{
		Name:   d.Name,
		Email:  d.Email,
		Amount: d.Amount,
	}
}

// DealRepository owns all store access for deals. Implementations return
// ErrDealNotFound, ErrDuplicateEmail and ErrCreationFailed for the
// corresponding store outcomes and wrap everything else.
//
// Create and Update write and then read the row back as two separate
// statements. They are not atomic: a concurrent Delete between the two can
// make a successful write return ErrDealNotFound.
type DealRepository interface {
	Create(ctx context.Context, input DealInput) (*Deal, error)
	GetByID(ctx context.Context, id int64) (*Deal, error)
	List(ctx context.Context) ([]*Deal, error)
	Update(ctx context.Context, id int64, input DealInput) (*Deal, error)
	// Delete does not check that the deal exists.
	Delete(ctx context.Context, id int64) error
}
