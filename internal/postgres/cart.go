package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/jackc/pgx/v5"
)

const cartCols = `id, user_id, product_id, quantity, price_at_add::text, created_at, updated_at`

func scanCartItem(row pgx.Row) (domain.CartItem, error) {
	var (
		it    domain.CartItem
		price string
	)
	if err := row.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &price, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return domain.CartItem{}, err
	}
	var err error
	it.PriceAtAdd, err = parseDecimal(price)
	return it, err
}

// UpsertCartItem relies on the (user_id, product_id) unique key: a repeated add
// only raises quantity, price_at_add keeps the first snapshot.
func (t *pgTx) UpsertCartItem(ctx context.Context, item *domain.CartItem) error {
	it, err := scanCartItem(t.tx.QueryRow(ctx, `
		INSERT INTO cart_items(user_id, product_id, quantity, price_at_add)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING `+cartCols,
		item.UserID, item.ProductID, item.Quantity, item.PriceAtAdd.StringFixed(2)))
	if err != nil {
		return writeErr(err)
	}
	*item = it
	return nil
}

func (t *pgTx) GetCartItem(ctx context.Context, userID string, productID int64) (domain.CartItem, error) {
	it, err := scanCartItem(t.tx.QueryRow(ctx,
		`SELECT `+cartCols+` FROM cart_items WHERE user_id=$1 AND product_id=$2`, userID, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CartItem{}, domain.ErrItemNotFound
	}
	return it, err
}

func (t *pgTx) SetCartItemQuantity(ctx context.Context, userID string, productID int64, qty int) error {
	err := affected(t.tx.Exec(ctx, `UPDATE cart_items SET quantity=$3, updated_at=now()
		WHERE user_id=$1 AND product_id=$2`, userID, productID, qty))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrItemNotFound
	}
	return writeErr(err)
}

func (t *pgTx) DeleteCartItem(ctx context.Context, userID string, productID int64) error {
	err := affected(t.tx.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id=$1 AND product_id=$2`, userID, productID))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrItemNotFound
	}
	return err
}

func (t *pgTx) ListCartItems(ctx context.Context, userID string, lock domain.LockMode) ([]domain.CartItem, error) {
	order := " ORDER BY created_at DESC, id DESC"
	if lock != domain.NoLock {
		order = " ORDER BY product_id"
	}
	rows, err := t.tx.Query(ctx, `SELECT `+cartCols+` FROM cart_items
		WHERE user_id=$1`+order+lockClause(lock, ""), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.CartItem{}
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (t *pgTx) ClearCart(ctx context.Context, userID string) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
