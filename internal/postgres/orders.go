package postgres

import (
	"context"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/jackc/pgx/v5"
)

const orderCols = `id::text, user_id, total::text, status, shipping_address, phone, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o      domain.Order
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &total, &status, &o.ShippingAddress, &o.Phone, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.Status(status)
	var err error
	o.Total, err = parseDecimal(total)
	return o, err
}

func (t *pgTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, total, status, shipping_address, phone, notes)
		VALUES ($1::uuid, $2, $3::numeric, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.Total.StringFixed(2), string(o.Status), o.ShippingAddress, o.Phone, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	return writeErr(err)
}

func (t *pgTx) InsertOrderLineItem(ctx context.Context, li *domain.OrderLineItem) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_line_items(order_id, product_id, quantity, price_at_order, subtotal)
		VALUES ($1::uuid, $2, $3, $4::numeric, $5::numeric)
		RETURNING id, created_at`,
		li.OrderID, li.ProductID, li.Quantity, li.PriceAtOrder.StringFixed(2), li.Subtotal.StringFixed(2),
	).Scan(&li.ID, &li.CreatedAt)
	return writeErr(err)
}

func (t *pgTx) GetOrder(ctx context.Context, id string, lock domain.LockMode) (domain.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id=$1::uuid`+lockClause(lock, ""), id))
	if err != nil {
		return domain.Order{}, readErr(err)
	}
	return o, nil
}

func (t *pgTx) ListOrderLineItems(ctx context.Context, orderID string) ([]domain.OrderLineItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id::text, product_id, quantity, price_at_order::text, subtotal::text, created_at
		FROM order_line_items WHERE order_id=$1::uuid ORDER BY id`, orderID)
	if err != nil {
		return nil, readErr(err)
	}
	defer rows.Close()

	out := []domain.OrderLineItem{}
	for rows.Next() {
		var (
			li              domain.OrderLineItem
			price, subtotal string
		)
		if err := rows.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.Quantity, &price, &subtotal, &li.CreatedAt); err != nil {
			return nil, err
		}
		if li.PriceAtOrder, err = parseDecimal(price); err != nil {
			return nil, err
		}
		if li.Subtotal, err = parseDecimal(subtotal); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func (t *pgTx) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+orderCols+` FROM orders
		WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (t *pgTx) SetOrderStatus(ctx context.Context, id string, status domain.Status) error {
	return affected(t.tx.Exec(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1::uuid`, id, string(status)))
}

func (t *pgTx) BestSellers(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT product_id, SUM(quantity)::bigint AS sold
		FROM order_line_items
		GROUP BY product_id
		ORDER BY sold DESC, product_id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ProductSales{}
	for rows.Next() {
		var ps domain.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Quantity); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
