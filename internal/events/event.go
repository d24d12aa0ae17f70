package events

import "time"

const (
	TypeDealCreated = "deal.created"
	TypeDealUpdated = "deal.updated"
	TypeDealDeleted = "deal.deleted"
)

// Event is one entry of the deal activity log.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	DealID     int64                  `json:"deal_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}
