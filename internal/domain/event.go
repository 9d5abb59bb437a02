package domain

import "time"

// OrderEvent is published after every reconciled notification.
type OrderEvent struct {
	EventID     string      `json:"event_id"`
	Type        string      `json:"type"`
	OrderID     string      `json:"order_id"`
	Status      OrderStatus `json:"status"`
	PaymentCode string      `json:"payment_code"`
	UniqueID    string      `json:"unique_id"`
	Redirect    string      `json:"redirect"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
