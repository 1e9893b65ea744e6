package cachesync

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/events"
	kafkax "github.com/ariefcatur/go-shop-consistency/internal/kafka"
	"github.com/ariefcatur/go-shop-consistency/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*miniredis.Miniredis, *Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, &Service{Redis: rdb, ServiceName: "cachesync"}
}

func message(id, eventType, topic string, payload any) kafkago.Message {
	return kafkago.Message{Topic: topic, Value: kafkax.MustMarshal(events.Envelope{
		EventID:   id,
		EventType: eventType,
		Payload:   kafkax.MustMarshal(payload),
	})}
}

func TestStatusChangeWritesCachedStatus(t *testing.T) {
	mr, svc := newService(t)
	ctx := context.Background()
	_, err := redisx.CacheOrderStatus(ctx, svc.Redis,
		redisx.OrderStatus{OrderID: "o-1", UserID: "u1", Status: domain.StatusPending}, redisx.TTLStatusCache)
	require.NoError(t, err)

	m := message("ev-1", events.EventOrderStatusChanged, events.TopicOrderStatusChanged,
		events.OrderStatusChangedPayload{OrderID: "o-1", UserID: "u1", From: "pending", To: "paid"})
	require.NoError(t, svc.Handle(ctx, m))

	st, found, err := redisx.CachedOrderStatus(ctx, svc.Redis, "o-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusPaid, st.Status)
	assert.Equal(t, "u1", st.UserID)
	assert.True(t, mr.Exists(fmt.Sprintf(redisx.KeyDedup, "cachesync", "ev-1")))
}

func TestLateEventDoesNotRollStatusBack(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()

	shipped := message("ev-7", events.EventOrderStatusChanged, events.TopicOrderStatusChanged,
		events.OrderStatusChangedPayload{OrderID: "o-7", UserID: "u1", From: "paid", To: "shipped"})
	paid := message("ev-8", events.EventOrderStatusChanged, events.TopicOrderStatusChanged,
		events.OrderStatusChangedPayload{OrderID: "o-7", UserID: "u1", From: "pending", To: "paid"})
	placed := message("ev-9", events.EventOrderPlaced, events.TopicOrderPlaced,
		events.OrderPlacedPayload{OrderID: "o-7", UserID: "u1", Total: "1.00"})
	for _, m := range []kafkago.Message{shipped, paid, placed} {
		require.NoError(t, svc.Handle(ctx, m))
	}

	st, found, err := redisx.CachedOrderStatus(ctx, svc.Redis, "o-7")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusShipped, st.Status)
}

func TestUnknownStatusOrOwnerIsSkipped(t *testing.T) {
	mr, svc := newService(t)
	ctx := context.Background()
	lost := message("ev-10", events.EventOrderStatusChanged, events.TopicOrderStatusChanged,
		events.OrderStatusChangedPayload{OrderID: "o-10", UserID: "u1", From: "paid", To: "lost"})
	ownerless := message("ev-11", events.EventOrderStatusChanged, events.TopicOrderStatusChanged,
		events.OrderStatusChangedPayload{OrderID: "o-11", From: "pending", To: "paid"})

	require.NoError(t, svc.Handle(ctx, lost))
	require.NoError(t, svc.Handle(ctx, ownerless))
	assert.False(t, mr.Exists(fmt.Sprintf(redisx.KeyOrderStatus, "o-10")))
	assert.False(t, mr.Exists(fmt.Sprintf(redisx.KeyOrderStatus, "o-11")))
}

func TestOrderPlacedDropsBestSellers(t *testing.T) {
	mr, svc := newService(t)
	require.NoError(t, mr.Set("bestsellers:10", "[]"))
	require.NoError(t, mr.Set("bestsellers:3", "[]"))

	m := message("ev-2", events.EventOrderPlaced, events.TopicOrderPlaced,
		events.OrderPlacedPayload{OrderID: "o-2", UserID: "u1", Total: "10.00"})
	require.NoError(t, svc.Handle(context.Background(), m))

	assert.False(t, mr.Exists("bestsellers:10"))
	assert.False(t, mr.Exists("bestsellers:3"))
	st, found, err := redisx.CachedOrderStatus(context.Background(), svc.Redis, "o-2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusPending, st.Status)
}

func TestCatalogDeactivatedDropsBestSellers(t *testing.T) {
	mr, svc := newService(t)
	require.NoError(t, mr.Set("bestsellers:10", "[]"))

	m := message("ev-3", events.EventCatalogDeactivated, events.TopicCatalogDeactivated,
		events.CatalogDeactivatedPayload{Kind: "category", ID: 1, Subcategories: 2, Products: 3})
	require.NoError(t, svc.Handle(context.Background(), m))

	assert.False(t, mr.Exists("bestsellers:10"))
}

func TestRedeliveryAppliedOnce(t *testing.T) {
	mr, svc := newService(t)
	key := fmt.Sprintf(redisx.KeyOrderStatus, "o-4")
	m := message("ev-4", events.EventOrderStatusChanged, events.TopicOrderStatusChanged,
		events.OrderStatusChangedPayload{OrderID: "o-4", UserID: "u1", From: "paid", To: "shipped"})

	require.NoError(t, svc.Handle(context.Background(), m))
	// the redelivery must not recreate an entry removed after the first delivery
	mr.Del(key)
	require.NoError(t, svc.Handle(context.Background(), m))

	assert.False(t, mr.Exists(key))
}

func TestBadInputIsSkipped(t *testing.T) {
	mr, svc := newService(t)
	ctx := context.Background()

	assert.NoError(t, svc.Handle(ctx, kafkago.Message{Topic: events.TopicOrderPlaced, Value: []byte("not json")}))
	assert.NoError(t, svc.Handle(ctx, message("ev-5", "SomethingElse", "other", struct{}{})))
	assert.False(t, mr.Exists(fmt.Sprintf(redisx.KeyDedup, "cachesync", "ev-5")))
}

func TestApplyFailureForgetsDedupMark(t *testing.T) {
	mr, svc := newService(t)
	m := kafkago.Message{Topic: events.TopicOrderPlaced, Value: kafkax.MustMarshal(events.Envelope{
		EventID:   "ev-6",
		EventType: events.EventOrderPlaced,
		Payload:   []byte(`"not an object"`),
	})}

	assert.Error(t, svc.Handle(context.Background(), m))
	assert.False(t, mr.Exists(fmt.Sprintf(redisx.KeyDedup, "cachesync", "ev-6")))
}
