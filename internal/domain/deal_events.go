package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/zhirschtritt/deals/internal/events"
)

func newDealEvent(eventType string, dealID int64, data map[string]interface{}) events.Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	return events.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		DealID:     dealID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func dealSnapshot(d *Deal) map[string]interface{} {
	data := map[string]interface{}{
		"name":       d.Name,
		"email":      d.Email,
		"created_at": d.CreatedAt,
	}
	if d.Amount != nil {
		data["amount"] = d.Amount.String()
	}
	return data
}

func DealCreatedEvent(d *Deal) events.Event {
	return newDealEvent(events.TypeDealCreated, d.ID, dealSnapshot(d))
}

func DealUpdatedEvent(d *Deal) events.Event {
	return newDealEvent(events.TypeDealUpdated, d.ID, dealSnapshot(d))
}

func DealDeletedEvent(id int64) events.Event {
	return newDealEvent(events.TypeDealDeleted, id, nil)
}
