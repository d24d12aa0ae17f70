package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/destel/rill"
	"github.com/shopspring/decimal"
	"github.com/zhirschtritt/deals/internal/domain"
)

var (
	firstNames = []string{"Ada", "Grace", "Alan", "Barbara", "Edsger", "Margaret", "Dennis", "Frances", "Ken", "Radia"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Liskov", "Dijkstra", "Hamilton", "Ritchie", "Allen", "Thompson", "Perlman"}
)

type DealCreator interface {
	CreateDeal(ctx context.Context, input domain.DealInput) (*domain.Deal, error)
}

type Result struct {
	Created int64
	Skipped int64
}

type Seeder struct {
	deals       DealCreator
	logger      *slog.Logger
	concurrency int
}

func NewSeeder(deals DealCreator, logger *slog.Logger, concurrency int) *Seeder {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Seeder{
		deals:       deals,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Inputs returns count sample deals. The same count always yields the same
// emails, so a second run skips everything it created the first time.
func Inputs(count int) []domain.DealInput {
	inputs := make([]domain.DealInput, count)
	for i := range count {
		first := firstNames[i%len(firstNames)]
		last := lastNames[(i/len(firstNames))%len(lastNames)]
		amount := decimal.NewFromInt(int64(i+1) * 250).Add(decimal.RequireFromString("0.99"))

		inputs[i] = domain.DealInput{
			Name:   fmt.Sprintf("%s %s", first, last),
			Email:  fmt.Sprintf("%s.%s.%d@example.com", strings.ToLower(first), strings.ToLower(last), i+1),
			Amount: &amount,
		}
	}
	return inputs
}

// Seed creates count sample deals. Deals whose email already exists are
// skipped; any other failure stops seeding.
func (s *Seeder) Seed(ctx context.Context, count int) (Result, error) {
	var created, skipped atomic.Int64

	err := rill.ForEach(rill.FromSlice(Inputs(count), nil), s.concurrency, func(input domain.DealInput) error {
		deal, err := s.deals.CreateDeal(ctx, input)
		if errors.Is(err, domain.ErrDuplicateEmail) {
			skipped.Add(1)
			s.logger.Debug("seed deal already exists", "email", input.Email)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to seed deal %s: %w", input.Email, err)
		}

		created.Add(1)
		s.logger.Debug("seeded deal", "deal_id", deal.ID, "email", deal.Email)
		return nil
	})

	result := Result{Created: created.Load(), Skipped: skipped.Load()}
	s.logger.Info("seeding finished", "created", result.Created, "skipped", result.Skipped)

	return result, err
}
