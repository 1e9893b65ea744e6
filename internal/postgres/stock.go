package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/jackc/pgx/v5"
)

func (t *pgTx) DecrementStock(ctx context.Context, productID int64, qty int) (int, bool, error) {
	var left int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at=now()
		WHERE id=$1 AND stock >= $2
		RETURNING stock`, productID, qty).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		left, err = t.GetStock(ctx, productID)
		return left, false, err
	}
	if err != nil {
		return 0, false, err
	}
	return left, true, nil
}

func (t *pgTx) IncrementStock(ctx context.Context, productID int64, qty int) (int, bool, error) {
	var now int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at=now()
		WHERE id=$1 AND stock <= $3::integer - $2::integer
		RETURNING stock`, productID, qty, domain.MaxStock).Scan(&now)
	if errors.Is(err, pgx.ErrNoRows) {
		now, err = t.GetStock(ctx, productID)
		return now, false, err
	}
	if err != nil {
		return 0, false, err
	}
	return now, true, nil
}

func (t *pgTx) GetStock(ctx context.Context, productID int64) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&n); err != nil {
		return 0, readErr(err)
	}
	return n, nil
}
