package events

import (
	"encoding/json"
	"time"
)

const (
	DefaultOrderSubject = "orders.events"

	EventOrderCreated      = "order.created"
	EventOrderStateChanged = "order.state_changed"
)

// OrderEvent is published on the order subject after a create or a state
// change has been committed. Consumers switch on EventType.
type OrderEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    uint      `json:"order_id"`
	UserID     uint      `json:"user_id"`
	StoreID    uint      `json:"store_id"`

	// order.created
	TotalPrice string `json:"total_price,omitempty"`
	ItemCount  int    `json:"item_count,omitempty"`

	// order.state_changed
	FromState string `json:"from_state,omitempty"`
	ToState   string `json:"to_state,omitempty"`
	ActorID   uint   `json:"actor_id,omitempty"`
}

func (e OrderEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}
