// Package cart keeps one line per (user, product) with the price captured when the
// product was first added.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/metrics"
	"github.com/ariefcatur/go-shop-consistency/internal/stock"
	"github.com/shopspring/decimal"
)

type Service struct {
	Store   domain.Store
	Metrics *metrics.Metrics
}

// Line is a cart row next to the live product it points at.
type Line struct {
	domain.CartItem
	Product     domain.ProductView `json:"product"`
	Purchasable bool               `json:"purchasable"`
	Available   int                `json:"available"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	// Stale is set when the line could not be checked out as it stands.
	Stale bool `json:"stale"`
}

type Cart struct {
	UserID string          `json:"user_id"`
	Lines  []Line          `json:"lines"`
	Total  decimal.Decimal `json:"total"`
}

// Adjustment describes what Sync did to one line.
type Adjustment struct {
	ProductID int64  `json:"product_id"`
	From      int    `json:"from"`
	To        int    `json:"to"` // 0 = removed
	Reason    string `json:"reason"`
}

func checkUser(userID string) error {
	if userID == "" {
		return &domain.ValidationError{Field: "user_id", Reason: "is required"}
	}
	return nil
}

func checkQty(qty int) error {
	if qty < 1 {
		return &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	return nil
}

// AddItem puts qty units of the product in the cart. A second add of the same
// product raises the quantity of the existing line; its price stays the one
// captured by the first add.
func (s *Service) AddItem(ctx context.Context, userID string, productID int64, qty int) (domain.CartItem, error) {
	if err := checkUser(userID); err != nil {
		return domain.CartItem{}, err
	}
	if err := checkQty(qty); err != nil {
		return domain.CartItem{}, err
	}
	var item domain.CartItem
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		p, err := tx.GetProduct(ctx, productID, domain.ForShare)
		if err != nil {
			return fmt.Errorf("product %d: %w", productID, err)
		}
		if !p.Purchasable() {
			return fmt.Errorf("product %d: %w", productID, domain.ErrProductNotPurchasable)
		}
		if err := stock.Reserve(ctx, tx, productID, qty); err != nil {
			return err
		}
		item = domain.CartItem{UserID: userID, ProductID: productID, Quantity: qty, PriceAtAdd: p.Price}
		if err := tx.UpsertCartItem(ctx, &item); err != nil {
			return err
		}
		// the upsert may have merged into an existing line: check the total
		return stock.Reserve(ctx, tx, productID, item.Quantity)
	})
	s.Metrics.ObserveError(err)
	if err != nil {
		return domain.CartItem{}, err
	}
	return item, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID string, productID int64, qty int) (domain.CartItem, error) {
	if err := checkUser(userID); err != nil {
		return domain.CartItem{}, err
	}
	if err := checkQty(qty); err != nil {
		return domain.CartItem{}, err
	}
	var item domain.CartItem
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		if item, err = tx.GetCartItem(ctx, userID, productID); err != nil {
			return err
		}
		if err := stock.Reserve(ctx, tx, productID, qty); err != nil {
			return err
		}
		if err := tx.SetCartItemQuantity(ctx, userID, productID, qty); err != nil {
			return err
		}
		item, err = tx.GetCartItem(ctx, userID, productID)
		return err
	})
	s.Metrics.ObserveError(err)
	if err != nil {
		return domain.CartItem{}, err
	}
	return item, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID string, productID int64) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	return s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.DeleteCartItem(ctx, userID, productID)
	})
}

// Clear empties the cart and returns how many lines were dropped.
func (s *Service) Clear(ctx context.Context, userID string) (int64, error) {
	if err := checkUser(userID); err != nil {
		return 0, err
	}
	var n int64
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		n, err = tx.ClearCart(ctx, userID)
		return err
	})
	return n, err
}

// GetCart lists lines newest first. Reading never changes the cart; lines that
// no longer fit live stock or purchasability are flagged Stale.
func (s *Service) GetCart(ctx context.Context, userID string) (Cart, error) {
	if err := checkUser(userID); err != nil {
		return Cart{}, err
	}
	var c Cart
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		c, err = load(ctx, tx, userID)
		return err
	})
	return c, err
}

// Total is the sum of snapshot subtotals.
func (s *Service) Total(ctx context.Context, userID string) (decimal.Decimal, error) {
	if err := checkUser(userID); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		items, err := tx.ListCartItems(ctx, userID, domain.NoLock)
		if err != nil {
			return err
		}
		for _, it := range items {
			total = total.Add(it.Subtotal())
		}
		return nil
	})
	return total, err
}

// Sync brings the cart in line with the catalog in one transaction: lines whose
// product is gone, unpurchasable or out of stock are removed, the rest are
// clamped to live stock.
func (s *Service) Sync(ctx context.Context, userID string) (Cart, []Adjustment, error) {
	if err := checkUser(userID); err != nil {
		return Cart{}, nil, err
	}
	var (
		c   Cart
		adj []Adjustment
	)
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		adj = adj[:0]
		items, err := tx.ListCartItems(ctx, userID, domain.ForUpdate)
		if err != nil {
			return err
		}
		for _, it := range items {
			p, err := tx.GetProduct(ctx, it.ProductID, domain.ForShare)
			reason := ""
			switch {
			case errors.Is(err, domain.ErrNotFound):
				reason = "product removed"
			case err != nil:
				return err
			case !p.Purchasable():
				reason = "product not purchasable"
			case p.Stock == 0:
				reason = "out of stock"
			}
			if reason != "" {
				if err := tx.DeleteCartItem(ctx, userID, it.ProductID); err != nil {
					return err
				}
				adj = append(adj, Adjustment{ProductID: it.ProductID, From: it.Quantity, To: 0, Reason: reason})
				continue
			}
			if it.Quantity > p.Stock {
				if err := tx.SetCartItemQuantity(ctx, userID, it.ProductID, p.Stock); err != nil {
					return err
				}
				adj = append(adj, Adjustment{ProductID: it.ProductID, From: it.Quantity, To: p.Stock, Reason: "limited stock"})
			}
		}
		c, err = load(ctx, tx, userID)
		return err
	})
	if err != nil {
		return Cart{}, nil, err
	}
	return c, adj, nil
}

func load(ctx context.Context, tx domain.Tx, userID string) (Cart, error) {
	items, err := tx.ListCartItems(ctx, userID, domain.NoLock)
	if err != nil {
		return Cart{}, err
	}
	c := Cart{UserID: userID, Lines: make([]Line, 0, len(items)), Total: decimal.Zero}
	for _, it := range items {
		p, err := tx.GetProduct(ctx, it.ProductID, domain.NoLock)
		if err != nil {
			return Cart{}, fmt.Errorf("cart product %d: %w", it.ProductID, err)
		}
		l := Line{
			CartItem:    it,
			Product:     p,
			Purchasable: p.Purchasable(),
			Available:   p.Stock,
			Subtotal:    it.Subtotal(),
		}
		l.Stale = !l.Purchasable || it.Quantity > p.Stock
		c.Lines = append(c.Lines, l)
		c.Total = c.Total.Add(l.Subtotal)
	}
	return c, nil
}
