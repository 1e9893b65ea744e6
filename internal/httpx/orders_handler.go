package httpx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/logging"
	"github.com/ariefcatur/go-shop-consistency/internal/orders"
	"github.com/ariefcatur/go-shop-consistency/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// HeaderIdempotencyKey lets a client retry a checkout without placing it twice.
const HeaderIdempotencyKey = "Idempotency-Key"

type OrdersHandler struct {
	Orders *orders.Service
	Redis  *redis.Client // nil: no status cache, no idempotency
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(RequireUser)
		r.Post("/", h.place)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/status", h.status)
		r.Post("/{id}/pay", h.transition(domain.StatusPaid))
		r.Post("/{id}/ship", h.transition(domain.StatusShipped))
		r.Post("/{id}/cancel", h.transition(domain.StatusCancelled))
	})
}

type placeOrderReq struct {
	ShippingAddress string `json:"shipping_address"`
	Phone           string `json:"phone"`
	Notes           string `json:"notes"`
}

type placeOrderResp struct {
	orders.Details
	Idempotent bool `json:"idempotent"`
}

func (h *OrdersHandler) place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	user := userID(r)

	idemKey := ""
	if key := r.Header.Get(HeaderIdempotencyKey); key != "" && h.Redis != nil {
		k := fmt.Sprintf(redisx.KeyIdemCheckout, user, key)
		owner, val, err := redisx.ClaimIdempotency(ctx, h.Redis, k)
		switch {
		case err != nil:
			// Redis down: place without the shortcut
			logging.Warn(ctx, "idempotency claim failed", "err", err)
		case !owner && val == redisx.IdemPending:
			writeJSON(w, http.StatusConflict, errorBody{Error: "a request with this idempotency key is in progress", Code: "in_progress"})
			return
		case !owner:
			d, err := h.Orders.GetOrder(ctx, val)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, placeOrderResp{Details: d, Idempotent: true})
			return
		default:
			idemKey = k
		}
	}

	d, err := h.Orders.PlaceOrder(ctx, orders.PlaceOrderInput{
		UserID:          user,
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
		Notes:           req.Notes,
	})
	if err != nil {
		if idemKey != "" {
			_ = redisx.ReleaseIdempotency(context.WithoutCancel(ctx), h.Redis, idemKey)
		}
		writeError(w, r, err)
		return
	}
	if idemKey != "" {
		if err := redisx.CompleteIdempotency(ctx, h.Redis, idemKey, d.ID); err != nil {
			logging.Warn(ctx, "idempotency store failed", "order_id", d.ID, "err", err)
		}
	}
	h.cacheStatus(ctx, d.Order)
	writeJSON(w, http.StatusCreated, placeOrderResp{Details: d})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.Orders.ListOrders(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.Orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err == nil && d.UserID != userID(r) {
		err = domain.ErrNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// status answers from the Redis cache when it can and fills it on a miss. Only
// the owner sees the status, cached or not.
func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "id")

	if h.Redis != nil {
		cached, found, err := redisx.CachedOrderStatus(ctx, h.Redis, orderID)
		if err != nil {
			logging.Warn(ctx, "status cache read failed", "order_id", orderID, "err", err)
		}
		if found {
			if cached.UserID != userID(r) {
				writeError(w, r, domain.ErrNotFound)
				return
			}
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	d, err := h.Orders.GetOrder(ctx, orderID)
	if err == nil && d.UserID != userID(r) {
		err = domain.ErrNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	// the read may predate a concurrent transition; the cache keeps the later one
	h.cacheStatus(ctx, d.Order)
	writeJSON(w, http.StatusOK, orderStatus(d.Order))
}

func (h *OrdersHandler) transition(to domain.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID := chi.URLParam(r, "id")
		if to == domain.StatusCancelled {
			// only the owner cancels
			d, err := h.Orders.GetOrder(ctx, orderID)
			if err == nil && d.UserID != userID(r) {
				err = domain.ErrNotFound
			}
			if err != nil {
				writeError(w, r, err)
				return
			}
		}
		o, err := h.Orders.Transition(ctx, orderID, to)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.cacheStatus(ctx, o)
		writeJSON(w, http.StatusOK, o)
	}
}

func orderStatus(o domain.Order) redisx.OrderStatus {
	return redisx.OrderStatus{OrderID: o.ID, UserID: o.UserID, Status: o.Status, UpdatedAt: o.UpdatedAt}
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o domain.Order) {
	if h.Redis == nil {
		return
	}
	if _, err := redisx.CacheOrderStatus(ctx, h.Redis, orderStatus(o), redisx.TTLStatusCache); err != nil {
		logging.Warn(ctx, "status cache write failed", "order_id", o.ID, "err", err)
	}
}
