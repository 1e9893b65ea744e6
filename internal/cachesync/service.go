// Package cachesync keeps the Redis read caches in step with committed changes by
// consuming the domain events published by the API.
package cachesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/events"
	kafkax "github.com/ariefcatur/go-shop-consistency/internal/kafka"
	"github.com/ariefcatur/go-shop-consistency/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Topics is what the consumer subscribes to.
var Topics = []string{
	events.TopicOrderPlaced,
	events.TopicOrderStatusChanged,
	events.TopicCatalogDeactivated,
}

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// Handle is installed as the consumer handler. Unknown event types are skipped;
// a redelivered event is applied once.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: nothing to retry
		slog.Warn("cachesync: bad envelope", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}
	switch env.EventType {
	case events.EventOrderPlaced, events.EventOrderStatusChanged, events.EventCatalogDeactivated:
	default:
		return nil
	}

	first, err := redisx.MarkProcessed(ctx, s.Redis, s.ServiceName, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		return nil
	}
	if err := s.apply(ctx, env); err != nil {
		// forget the mark so the redelivery is processed
		_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)).Err()
		return err
	}
	return nil
}

func (s *Service) apply(ctx context.Context, env events.Envelope) error {
	switch env.EventType {
	case events.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[events.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		st := redisx.OrderStatus{OrderID: p.OrderID, UserID: p.UserID, Status: domain.StatusPending, UpdatedAt: env.OccurredAt}
		if err := s.cacheStatus(ctx, st); err != nil {
			return err
		}
		return s.dropBestSellers(ctx, env)

	case events.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[events.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		slog.Info("cachesync: order status", "order_id", p.OrderID, "from", p.From, "to", p.To, "trace_id", env.TraceID)
		to, err := domain.ParseStatus(p.To)
		if err != nil {
			slog.Warn("cachesync: status skipped", "order_id", p.OrderID, "err", err)
			return nil
		}
		return s.cacheStatus(ctx, redisx.OrderStatus{OrderID: p.OrderID, UserID: p.UserID, Status: to, UpdatedAt: p.UpdatedAt})

	case events.EventCatalogDeactivated:
		p, err := kafkax.UnwrapPayload[events.CatalogDeactivatedPayload](env.Payload)
		if err != nil {
			return err
		}
		slog.Info("cachesync: catalog deactivated", "kind", p.Kind, "id", p.ID,
			"subcategories", p.Subcategories, "products", p.Products, "trace_id", env.TraceID)
		// the report carries product purchasability
		return s.dropBestSellers(ctx, env)
	}
	return nil
}

// cacheStatus never moves a cached status back, so events arriving out of order
// or after an API write leave the latest status in place.
func (s *Service) cacheStatus(ctx context.Context, st redisx.OrderStatus) error {
	if st.UserID == "" {
		// the status read checks the owner; an entry without one would hide the order
		slog.Warn("cachesync: status without owner skipped", "order_id", st.OrderID)
		return nil
	}
	written, err := redisx.CacheOrderStatus(ctx, s.Redis, st, redisx.TTLStatusCache)
	if err != nil {
		return err
	}
	if !written {
		slog.Debug("cachesync: newer status cached", "order_id", st.OrderID, "status", st.Status)
	}
	return nil
}

func (s *Service) dropBestSellers(ctx context.Context, env events.Envelope) error {
	n, err := redisx.DeletePrefix(ctx, s.Redis, redisx.KeyBestSellersPrefix)
	if err != nil {
		return err
	}
	slog.Debug("cachesync: best sellers dropped", "keys", n, "event_id", env.EventID)
	return nil
}
