package events

import (
	"context"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	kafkax "github.com/ariefcatur/go-shop-consistency/internal/kafka"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Emitter turns committed domain changes into envelopes. It is only called after
// the transaction that produced the change has committed.
type Emitter struct {
	Producer Publisher
	Service  string
}

func (e *Emitter) publish(ctx context.Context, topic, eventType, correlationID string, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	e.Producer.Publish(topic, PartitionKey(correlationID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (e *Emitter) OrderPlaced(ctx context.Context, o domain.Order, lines []domain.OrderLineItem) {
	items := make([]ItemPrice, 0, len(lines))
	for _, li := range lines {
		items = append(items, ItemPrice{
			ProductID:    li.ProductID,
			Qty:          li.Quantity,
			PriceAtOrder: li.PriceAtOrder.StringFixed(2),
			Subtotal:     li.Subtotal.StringFixed(2),
		})
	}
	e.publish(ctx, TopicOrderPlaced, EventOrderPlaced, o.ID, OrderPlacedPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Items:   items,
		Total:   o.Total.StringFixed(2),
	})
}

func (e *Emitter) OrderStatusChanged(ctx context.Context, o domain.Order, from domain.Status) {
	e.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, o.ID, OrderStatusChangedPayload{
		OrderID:   o.ID,
		UserID:    o.UserID,
		From:      string(from),
		To:        string(o.Status),
		UpdatedAt: o.UpdatedAt,
	})
}

func (e *Emitter) CatalogDeactivated(ctx context.Context, kind domain.EntityKind, id, subcategories, products int64) {
	e.publish(ctx, TopicCatalogDeactivated, EventCatalogDeactivated, CatalogKey(kind, id), CatalogDeactivatedPayload{
		Kind:          string(kind),
		ID:            id,
		Subcategories: subcategories,
		Products:      products,
	})
}

func CatalogKey(kind domain.EntityKind, id int64) string {
	return string(kind) + ":" + strconv.FormatInt(id, 10)
}
