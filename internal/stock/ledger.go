// Package stock owns the authoritative stock count of every product.
//
// The package-level functions run inside a caller's transaction; Ledger wraps
// each of them in a transaction of its own.
package stock

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/metrics"
)

func checkQty(qty int) error {
	if qty < 1 {
		return &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	return nil
}

// Reserve checks that qty units are available without taking them.
func Reserve(ctx context.Context, tx domain.StockTx, productID int64, qty int) error {
	if err := checkQty(qty); err != nil {
		return err
	}
	available, err := tx.GetStock(ctx, productID)
	if err != nil {
		return fmt.Errorf("product %d: %w", productID, err)
	}
	if available < qty {
		return &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}
	return nil
}

// Decrement takes qty units. The check and the write are the same conditional
// statement, so two concurrent decrements can never both pass on stale stock.
func Decrement(ctx context.Context, tx domain.StockTx, productID int64, qty int) (int, error) {
	if err := checkQty(qty); err != nil {
		return 0, err
	}
	left, ok, err := tx.DecrementStock(ctx, productID, qty)
	if err != nil {
		return 0, fmt.Errorf("decrement product %d: %w", productID, err)
	}
	if !ok {
		return left, &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: left}
	}
	return left, nil
}

// Restore puts qty units back, e.g. when an order is cancelled.
func Restore(ctx context.Context, tx domain.StockTx, productID int64, qty int) (int, error) {
	if err := checkQty(qty); err != nil {
		return 0, err
	}
	now, ok, err := tx.IncrementStock(ctx, productID, qty)
	if err != nil {
		return 0, fmt.Errorf("restore product %d: %w", productID, err)
	}
	if !ok {
		return now, &domain.ValidationError{
			Field:  "quantity",
			Reason: fmt.Sprintf("stock of product %d would exceed %d", productID, domain.MaxStock),
		}
	}
	return now, nil
}

type Ledger struct {
	Store   domain.Store
	Metrics *metrics.Metrics
}

func (l *Ledger) Available(ctx context.Context, productID int64) (int, error) {
	var n int
	err := l.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		n, err = tx.GetStock(ctx, productID)
		return err
	})
	return n, err
}

func (l *Ledger) Decrement(ctx context.Context, productID int64, qty int) (int, error) {
	var left int
	err := l.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		left, err = Decrement(ctx, tx, productID, qty)
		return err
	})
	l.Metrics.ObserveError(err)
	return left, err
}

func (l *Ledger) Restore(ctx context.Context, productID int64, qty int) (int, error) {
	var now int
	err := l.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		now, err = Restore(ctx, tx, productID, qty)
		return err
	})
	return now, err
}

// Restock is the administrative stock increase; same guard as Restore.
func (l *Ledger) Restock(ctx context.Context, productID int64, qty int) (int, error) {
	return l.Restore(ctx, productID, qty)
}
