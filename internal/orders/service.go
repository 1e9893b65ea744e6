// Package orders turns a cart into an immutable order and owns the order status
// machine.
package orders

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/logging"
	"github.com/ariefcatur/go-shop-consistency/internal/metrics"
	"github.com/ariefcatur/go-shop-consistency/internal/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultBestSellers = 10

// EventSink receives committed order changes.
type EventSink interface {
	OrderPlaced(ctx context.Context, o domain.Order, lines []domain.OrderLineItem)
	OrderStatusChanged(ctx context.Context, o domain.Order, from domain.Status)
}

type Service struct {
	Store   domain.Store
	Events  EventSink
	Metrics *metrics.Metrics
	// NewID defaults to uuid.NewString.
	NewID func() string
}

type PlaceOrderInput struct {
	UserID          string `json:"user_id" validate:"required"`
	ShippingAddress string `json:"shipping_address" validate:"required"`
	Phone           string `json:"phone" validate:"required,max=20"`
	Notes           string `json:"notes"`
}

func (in *PlaceOrderInput) normalize() {
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Notes = strings.TrimSpace(in.Notes)
}

// Details is an order with its line items.
type Details struct {
	domain.Order
	Items []domain.OrderLineItem `json:"items"`
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// PlaceOrder checks out the user's cart in one transaction: every line is
// re-validated against the live catalog, the order and its line items are written
// with the cart's snapshot prices, stock is taken and the cart is emptied. On any
// failure nothing is written and the cart is left as it was.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (Details, error) {
	in.normalize()
	if err := domain.Validate(in); err != nil {
		s.Metrics.ObserveCheckout(err)
		return Details{}, err
	}

	var out Details
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		// Locking the cart rows makes a second checkout of the same cart wait for
		// this one and then find the rows gone. They come in product id order so
		// concurrent checkouts lock products in the same sequence.
		items, err := tx.ListCartItems(ctx, in.UserID, domain.ForUpdate)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domain.ErrEmptyCart
		}

		total := decimal.Zero
		for _, it := range items {
			p, err := tx.GetProduct(ctx, it.ProductID, domain.ForUpdate)
			if err != nil {
				return fmt.Errorf("product %d: %w", it.ProductID, err)
			}
			if !p.Purchasable() {
				return fmt.Errorf("product %d: %w", it.ProductID, domain.ErrProductNotPurchasable)
			}
			if p.Stock < it.Quantity {
				return &domain.InsufficientStockError{ProductID: it.ProductID, Requested: it.Quantity, Available: p.Stock}
			}
			total = total.Add(it.Subtotal())
		}

		out.Order = domain.Order{
			ID:              s.newID(),
			UserID:          in.UserID,
			Total:           total,
			Status:          domain.StatusPending,
			ShippingAddress: in.ShippingAddress,
			Phone:           in.Phone,
			Notes:           in.Notes,
		}
		if err := tx.InsertOrder(ctx, &out.Order); err != nil {
			return err
		}
		out.Items = make([]domain.OrderLineItem, 0, len(items))
		for _, it := range items {
			li := domain.OrderLineItem{
				OrderID:      out.ID,
				ProductID:    it.ProductID,
				Quantity:     it.Quantity,
				PriceAtOrder: it.PriceAtAdd,
				Subtotal:     it.Subtotal(),
			}
			if err := tx.InsertOrderLineItem(ctx, &li); err != nil {
				return err
			}
			if _, err := stock.Decrement(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
			out.Items = append(out.Items, li)
		}
		cleared, err := tx.ClearCart(ctx, in.UserID)
		if err != nil {
			return err
		}
		if cleared != int64(len(items)) {
			// a line was added after the cart was read; it must not vanish unordered
			return fmt.Errorf("cart of %s changed during checkout: %w", in.UserID, domain.ErrConcurrencyConflict)
		}
		return nil
	})
	s.Metrics.ObserveCheckout(err)
	if err != nil {
		logging.Info(ctx, "checkout rejected", "user_id", in.UserID, "outcome", metrics.Outcome(err), "err", err)
		return Details{}, err
	}

	logging.Info(ctx, "order placed", "order_id", out.ID, "user_id", out.UserID,
		"items", len(out.Items), "total", out.Total.StringFixed(2))
	if s.Events != nil {
		s.Events.OrderPlaced(ctx, out.Order, out.Items)
	}
	return out, nil
}

// CancelOrder puts every line item's quantity back on stock and marks the order
// cancelled. Only pending and paid orders can be cancelled.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var (
		o    domain.Order
		from domain.Status
	)
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		if o, err = tx.GetOrder(ctx, orderID, domain.ForUpdate); err != nil {
			return err
		}
		from = o.Status
		if !domain.CanTransition(from, domain.StatusCancelled) {
			return &domain.TransitionError{From: from, To: domain.StatusCancelled}
		}
		lines, err := tx.ListOrderLineItems(ctx, orderID)
		if err != nil {
			return err
		}
		slices.SortFunc(lines, func(a, b domain.OrderLineItem) int { return cmp.Compare(a.ProductID, b.ProductID) })
		for _, li := range lines {
			if _, err := stock.Restore(ctx, tx, li.ProductID, li.Quantity); err != nil {
				return err
			}
		}
		if err := tx.SetOrderStatus(ctx, orderID, domain.StatusCancelled); err != nil {
			return err
		}
		o, err = tx.GetOrder(ctx, orderID, domain.NoLock)
		return err
	})
	s.Metrics.ObserveError(err)
	if err != nil {
		return domain.Order{}, fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	s.changed(ctx, o, from)
	return o, nil
}

func (s *Service) Pay(ctx context.Context, orderID string) (domain.Order, error) {
	return s.Transition(ctx, orderID, domain.StatusPaid)
}

func (s *Service) Ship(ctx context.Context, orderID string) (domain.Order, error) {
	return s.Transition(ctx, orderID, domain.StatusShipped)
}

// Transition moves the order to `to`. Cancellation goes through CancelOrder so
// stock is restored.
func (s *Service) Transition(ctx context.Context, orderID string, to domain.Status) (domain.Order, error) {
	if !to.Valid() {
		return domain.Order{}, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(to)}
	}
	if to == domain.StatusCancelled {
		return s.CancelOrder(ctx, orderID)
	}
	var (
		o    domain.Order
		from domain.Status
	)
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		if o, err = tx.GetOrder(ctx, orderID, domain.ForUpdate); err != nil {
			return err
		}
		from = o.Status
		if !domain.CanTransition(from, to) {
			return &domain.TransitionError{From: from, To: to}
		}
		if err := tx.SetOrderStatus(ctx, orderID, to); err != nil {
			return err
		}
		o, err = tx.GetOrder(ctx, orderID, domain.NoLock)
		return err
	})
	s.Metrics.ObserveError(err)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s to %s: %w", orderID, to, err)
	}
	s.changed(ctx, o, from)
	return o, nil
}

func (s *Service) changed(ctx context.Context, o domain.Order, from domain.Status) {
	s.Metrics.ObserveTransition(o.Status)
	logging.Info(ctx, "order status changed", "order_id", o.ID, "from", from, "to", o.Status)
	if s.Events != nil {
		s.Events.OrderStatusChanged(ctx, o, from)
	}
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (Details, error) {
	var d Details
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		if d.Order, err = tx.GetOrder(ctx, orderID, domain.NoLock); err != nil {
			return err
		}
		d.Items, err = tx.ListOrderLineItems(ctx, orderID)
		return err
	})
	return d, err
}

// Status reads just the status, for the cached status endpoint.
func (s *Service) Status(ctx context.Context, orderID string) (domain.Status, error) {
	d, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return d.Status, nil
}

// ListOrders returns the user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		out, err = tx.ListOrders(ctx, userID)
		return err
	})
	return out, err
}

// BestSellers ranks products by units sold. limit <= 0 means DefaultBestSellers.
func (s *Service) BestSellers(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	if limit <= 0 {
		limit = DefaultBestSellers
	}
	var out []domain.ProductSales
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		out, err = tx.BestSellers(ctx, limit)
		return err
	})
	return out, err
}
