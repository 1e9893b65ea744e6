package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventCatalogDeactivated = "CatalogDeactivated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id or "kind:id"
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID    int64  `json:"product_id"`
	Qty          int    `json:"qty"`
	PriceAtOrder string `json:"price_at_order"`
	Subtotal     string `json:"subtotal"`
}

type OrderPlacedPayload struct {
	OrderID string      `json:"order_id"`
	UserID  string      `json:"user_id"`
	Items   []ItemPrice `json:"items"`
	Total   string      `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CatalogDeactivatedPayload struct {
	Kind          string `json:"kind"`
	ID            int64  `json:"id"`
	Subcategories int64  `json:"subcategories"`
	Products      int64  `json:"products"`
}
