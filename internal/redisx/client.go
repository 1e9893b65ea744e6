// Package redisx holds the Redis side of the service: key templates, the JSON
// cache helpers and the idempotency and dedup primitives built on SETNX.
package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// GetJSON decodes the value at key into v. found is false on a miss.
func GetJSON(ctx context.Context, rdb *redis.Client, key string, v any) (bool, error) {
	b, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, rdb *redis.Client, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err()
}

// ClaimIdempotency takes key for a new request. When another request already
// holds it, owner is false and value is what that request stored: IdemPending
// while it is still running, the order id once it finished.
func ClaimIdempotency(ctx context.Context, rdb *redis.Client, key string) (owner bool, value string, err error) {
	ok, err := rdb.SetNX(ctx, key, IdemPending, TTLIdemPending).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, "", nil
	}
	value, err = rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls
		return ClaimIdempotency(ctx, rdb, key)
	}
	return false, value, err
}

func CompleteIdempotency(ctx context.Context, rdb *redis.Client, key, orderID string) error {
	return rdb.Set(ctx, key, orderID, TTLIdempotency).Err()
}

// ReleaseIdempotency drops a claim whose request failed so the client can retry.
func ReleaseIdempotency(ctx context.Context, rdb *redis.Client, key string) error {
	return rdb.Del(ctx, key).Err()
}

// MarkProcessed records eventID for service. first is false when the event was
// seen before.
func MarkProcessed(ctx context.Context, rdb *redis.Client, service, eventID string) (first bool, err error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

// DeletePrefix removes every key starting with prefix and returns how many went.
func DeletePrefix(ctx context.Context, rdb *redis.Client, prefix string) (int64, error) {
	var n int64
	iter := rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		d, err := rdb.Del(ctx, iter.Val()).Result()
		if err != nil {
			return n, err
		}
		n += d
	}
	return n, iter.Err()
}

// OrderStatus is the cached view of one order's status.
type OrderStatus struct {
	OrderID   string        `json:"order_id"`
	UserID    string        `json:"user_id"`
	Status    domain.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// setIfNewer writes the entry only when no entry of the same or a later status
// is cached, so a slow writer holding an old read cannot roll the cache back.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'rank')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'rank', ARGV[1], 'body', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// CacheOrderStatus stores st unless the cache already holds the same or a
// later status of the order. written reports whether it was stored.
func CacheOrderStatus(ctx context.Context, rdb *redis.Client, st OrderStatus, ttl time.Duration) (written bool, err error) {
	rank := st.Status.Rank()
	if rank < 0 {
		return false, fmt.Errorf("cache status %q of %s: unknown status", st.Status, st.OrderID)
	}
	b, err := json.Marshal(st)
	if err != nil {
		return false, err
	}
	n, err := setIfNewer.Run(ctx, rdb, []string{fmt.Sprintf(KeyOrderStatus, st.OrderID)},
		rank, b, ttl.Milliseconds()).Int()
	return n == 1, err
}

// CachedOrderStatus reads the cached status. found is false on a miss.
func CachedOrderStatus(ctx context.Context, rdb *redis.Client, orderID string) (st OrderStatus, found bool, err error) {
	key := fmt.Sprintf(KeyOrderStatus, orderID)
	b, err := rdb.HGet(ctx, key, "body").Bytes()
	if errors.Is(err, redis.Nil) {
		return OrderStatus{}, false, nil
	}
	if err != nil {
		return OrderStatus{}, false, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return OrderStatus{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return st, true, nil
}
