package memstore

import (
	"cmp"
	"context"
	"slices"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
)

func (t *tx) DecrementStock(ctx context.Context, productID int64, qty int) (int, bool, error) {
	if err := t.fault("DecrementStock"); err != nil {
		return 0, false, err
	}
	p, ok := t.st.products[productID]
	if !ok {
		return 0, false, domain.ErrNotFound
	}
	if p.Stock < qty {
		return p.Stock, false, nil
	}
	p.Stock -= qty
	p.UpdatedAt = t.now
	t.st.products[productID] = p
	return p.Stock, true, nil
}

func (t *tx) IncrementStock(ctx context.Context, productID int64, qty int) (int, bool, error) {
	if err := t.fault("IncrementStock"); err != nil {
		return 0, false, err
	}
	p, ok := t.st.products[productID]
	if !ok {
		return 0, false, domain.ErrNotFound
	}
	if p.Stock > domain.MaxStock-qty {
		return p.Stock, false, nil
	}
	p.Stock += qty
	p.UpdatedAt = t.now
	t.st.products[productID] = p
	return p.Stock, true, nil
}

func (t *tx) GetStock(ctx context.Context, productID int64) (int, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return p.Stock, nil
}

func (t *tx) UpsertCartItem(ctx context.Context, item *domain.CartItem) error {
	if err := t.fault("UpsertCartItem"); err != nil {
		return err
	}
	if _, ok := t.st.products[item.ProductID]; !ok {
		return domain.ErrParentNotFound
	}
	k := cartKey{item.UserID, item.ProductID}
	if cur, ok := t.st.cart[k]; ok {
		cur.Quantity += item.Quantity
		cur.UpdatedAt = t.now
		t.st.cart[k] = cur
		*item = cur
		return nil
	}
	item.ID = t.st.next()
	item.CreatedAt, item.UpdatedAt = t.now, t.now
	t.st.cart[k] = *item
	return nil
}

func (t *tx) GetCartItem(ctx context.Context, userID string, productID int64) (domain.CartItem, error) {
	it, ok := t.st.cart[cartKey{userID, productID}]
	if !ok {
		return domain.CartItem{}, domain.ErrItemNotFound
	}
	return it, nil
}

func (t *tx) SetCartItemQuantity(ctx context.Context, userID string, productID int64, qty int) error {
	if err := t.fault("SetCartItemQuantity"); err != nil {
		return err
	}
	k := cartKey{userID, productID}
	it, ok := t.st.cart[k]
	if !ok {
		return domain.ErrItemNotFound
	}
	it.Quantity, it.UpdatedAt = qty, t.now
	t.st.cart[k] = it
	return nil
}

func (t *tx) DeleteCartItem(ctx context.Context, userID string, productID int64) error {
	if err := t.fault("DeleteCartItem"); err != nil {
		return err
	}
	k := cartKey{userID, productID}
	if _, ok := t.st.cart[k]; !ok {
		return domain.ErrItemNotFound
	}
	delete(t.st.cart, k)
	return nil
}

// ListCartItems ignores lock beyond the ordering: transactions are serialized.
func (t *tx) ListCartItems(ctx context.Context, userID string, lock domain.LockMode) ([]domain.CartItem, error) {
	out := []domain.CartItem{}
	for k, it := range t.st.cart {
		if k.userID == userID {
			out = append(out, it)
		}
	}
	if lock != domain.NoLock {
		slices.SortFunc(out, func(a, b domain.CartItem) int { return cmp.Compare(a.ProductID, b.ProductID) })
		return out, nil
	}
	slices.SortFunc(out, func(a, b domain.CartItem) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (t *tx) ClearCart(ctx context.Context, userID string) (int64, error) {
	if err := t.fault("ClearCart"); err != nil {
		return 0, err
	}
	var n int64
	for k := range t.st.cart {
		if k.userID == userID {
			delete(t.st.cart, k)
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertOrder(ctx context.Context, o *domain.Order) error {
	if err := t.fault("InsertOrder"); err != nil {
		return err
	}
	if _, ok := t.st.orders[o.ID]; ok {
		return domain.ErrDuplicate
	}
	o.CreatedAt, o.UpdatedAt = t.now, t.now
	t.st.orders[o.ID] = *o
	t.st.orderSeq[o.ID] = t.st.next()
	return nil
}

func (t *tx) InsertOrderLineItem(ctx context.Context, li *domain.OrderLineItem) error {
	if err := t.fault("InsertOrderLineItem"); err != nil {
		return err
	}
	if _, ok := t.st.orders[li.OrderID]; !ok {
		return domain.ErrParentNotFound
	}
	if _, ok := t.st.products[li.ProductID]; !ok {
		return domain.ErrParentNotFound
	}
	for _, x := range t.st.lineItems {
		if x.OrderID == li.OrderID && x.ProductID == li.ProductID {
			return domain.ErrDuplicate
		}
	}
	li.ID = t.st.next()
	li.CreatedAt = t.now
	t.st.lineItems[li.ID] = *li
	return nil
}

func (t *tx) GetOrder(ctx context.Context, id string, _ domain.LockMode) (domain.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (t *tx) ListOrderLineItems(ctx context.Context, orderID string) ([]domain.OrderLineItem, error) {
	out := []domain.OrderLineItem{}
	for _, li := range t.st.lineItems {
		if li.OrderID == orderID {
			out = append(out, li)
		}
	}
	slices.SortFunc(out, func(a, b domain.OrderLineItem) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	out := []domain.Order{}
	for _, o := range t.st.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b domain.Order) int {
		return cmp.Compare(t.st.orderSeq[b.ID], t.st.orderSeq[a.ID])
	})
	return out, nil
}

func (t *tx) SetOrderStatus(ctx context.Context, id string, status domain.Status) error {
	if err := t.fault("SetOrderStatus"); err != nil {
		return err
	}
	o, ok := t.st.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status, o.UpdatedAt = status, t.now
	t.st.orders[id] = o
	return nil
}

func (t *tx) BestSellers(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	sums := map[int64]int64{}
	for _, li := range t.st.lineItems {
		sums[li.ProductID] += int64(li.Quantity)
	}
	out := make([]domain.ProductSales, 0, len(sums))
	for id, q := range sums {
		out = append(out, domain.ProductSales{ProductID: id, Quantity: q})
	}
	slices.SortFunc(out, func(a, b domain.ProductSales) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
