package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{user_id}:{idempotency_key} -> order_id
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Cache status order: order_status:{order_id} -> hash {rank, body}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Best-seller report per limit: bestsellers:{limit} -> JSON rows
	KeyBestSellers       = "bestsellers:%d"
	KeyBestSellersPrefix = "bestsellers:"

	// Placeholder held by an in-flight checkout until the order id is known.
	IdemPending = "pending"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLBestSellers = time.Minute
	// TTLIdemPending bounds a checkout that crashed before finishing.
	TTLIdemPending = 30 * time.Second
)
