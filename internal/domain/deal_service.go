package domain

import (
	"context"
	"log/slog"

	"github.com/zhirschtritt/deals/internal/events"
)

type DealService struct {
	dealRepo      DealRepository
	eventConsumer events.EventConsumer
	logger        *slog.Logger
}

func NewDealService(dealRepo DealRepository, eventConsumer events.EventConsumer, logger *slog.Logger) *DealService {
	return &DealService{
		dealRepo:      dealRepo,
		eventConsumer: eventConsumer,
		logger:        logger,
	}
}

func (s *DealService) CreateDeal(ctx context.Context, input DealInput) (*Deal, error) {
	if err := ValidateDealInput(input); err != nil {
		return nil, err
	}

	deal, err := s.dealRepo.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	s.logger.Info("deal created", "deal_id", deal.ID)
	s.publish(ctx, DealCreatedEvent(deal))

	return deal, nil
}

func (s *DealService) GetDeal(ctx context.Context, id int64) (*Deal, error) {
	return s.dealRepo.GetByID(ctx, id)
}

func (s *DealService) ListDeals(ctx context.Context) ([]*Deal, error) {
	return s.dealRepo.List(ctx)
}

// UpdateDeal replaces every mutable field of the deal with input.
func (s *DealService) UpdateDeal(ctx context.Context, id int64, input DealInput) (*Deal, error) {
	if err := ValidateDealInput(input); err != nil {
		return nil, err
	}

	deal, err := s.dealRepo.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}

	s.logger.Info("deal updated", "deal_id", deal.ID)
	s.publish(ctx, DealUpdatedEvent(deal))

	return deal, nil
}

func (s *DealService) DeleteDeal(ctx context.Context, id int64) error {
	if err := s.dealRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("deal deleted", "deal_id", id)
	s.publish(ctx, DealDeletedEvent(id))

	return nil
}

// publish never fails the caller: the write it describes already happened.
func (s *DealService) publish(ctx context.Context, event events.Event) {
	if s.eventConsumer == nil {
		return
	}
	if err := s.eventConsumer.Consume(ctx, event); err != nil {
		s.logger.Warn("failed to publish deal event", "error", err, "type", event.Type, "deal_id", event.DealID)
	}
}
