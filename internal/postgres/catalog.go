package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/jackc/pgx/v5"
)

const categoryCols = `id, name, description, active, created_at, updated_at`

func scanCategory(row pgx.Row) (domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (t *pgTx) InsertCategory(ctx context.Context, c *domain.Category) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO categories(name, description, active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Description, c.Active,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return writeErr(err)
}

func (t *pgTx) GetCategory(ctx context.Context, id int64, lock domain.LockMode) (domain.Category, error) {
	c, err := scanCategory(t.tx.QueryRow(ctx,
		`SELECT `+categoryCols+` FROM categories WHERE id=$1`+lockClause(lock, ""), id))
	if err != nil {
		return domain.Category{}, readErr(err)
	}
	return c, nil
}

func (t *pgTx) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+categoryCols+` FROM categories
		WHERE ($1::boolean = false OR active) ORDER BY name, id`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgTx) UpdateCategory(ctx context.Context, c *domain.Category) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE categories SET name=$2, description=$3, updated_at=now()
		WHERE id=$1
		RETURNING `+categoryCols,
		c.ID, c.Name, c.Description,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return writeErr(readErr(err))
	}
	return nil
}

func (t *pgTx) SetCategoryActive(ctx context.Context, id int64, active bool) error {
	return affected(t.tx.Exec(ctx,
		`UPDATE categories SET active=$2, updated_at=now() WHERE id=$1`, id, active))
}

const subcategoryCols = `id, name, description, category_id, active, created_at, updated_at`

func scanSubcategory(row pgx.Row) (domain.Subcategory, error) {
	var s domain.Subcategory
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.CategoryID, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (t *pgTx) InsertSubcategory(ctx context.Context, s *domain.Subcategory) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO subcategories(name, description, category_id, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		s.Name, s.Description, s.CategoryID, s.Active,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return writeErr(err)
}

func (t *pgTx) GetSubcategory(ctx context.Context, id int64, lock domain.LockMode) (domain.Subcategory, error) {
	s, err := scanSubcategory(t.tx.QueryRow(ctx,
		`SELECT `+subcategoryCols+` FROM subcategories WHERE id=$1`+lockClause(lock, ""), id))
	if err != nil {
		return domain.Subcategory{}, readErr(err)
	}
	return s, nil
}

func (t *pgTx) ListSubcategories(ctx context.Context, f domain.SubcategoryFilter) ([]domain.Subcategory, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+subcategoryCols+` FROM subcategories
		WHERE ($1::bigint = 0 OR category_id=$1) AND ($2 = false OR active)
		ORDER BY name, id`, f.CategoryID, f.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Subcategory{}
	for rows.Next() {
		s, err := scanSubcategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *pgTx) UpdateSubcategory(ctx context.Context, s *domain.Subcategory) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE subcategories SET name=$2, description=$3, updated_at=now()
		WHERE id=$1
		RETURNING `+subcategoryCols,
		s.ID, s.Name, s.Description,
	).Scan(&s.ID, &s.Name, &s.Description, &s.CategoryID, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return writeErr(readErr(err))
	}
	return nil
}

func (t *pgTx) SetSubcategoryActive(ctx context.Context, id int64, active bool) error {
	return affected(t.tx.Exec(ctx,
		`UPDATE subcategories SET active=$2, updated_at=now() WHERE id=$1`, id, active))
}

func (t *pgTx) DeactivateSubcategoriesOf(ctx context.Context, categoryID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE subcategories SET active=false, updated_at=now()
		WHERE category_id=$1 AND active`, categoryID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// productSelect reads a product with the live flags of both ancestors.
const productSelect = `
	SELECT p.id, p.name, p.description, p.price::text, p.stock, p.image,
	       p.subcategory_id, p.category_id, p.active, p.created_at, p.updated_at,
	       s.active, c.active
	FROM products p
	JOIN subcategories s ON s.id = p.subcategory_id
	JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (domain.ProductView, error) {
	var (
		v     domain.ProductView
		price string
	)
	err := row.Scan(&v.ID, &v.Name, &v.Description, &price, &v.Stock, &v.Image,
		&v.SubcategoryID, &v.CategoryID, &v.Active, &v.CreatedAt, &v.UpdatedAt,
		&v.SubcategoryActive, &v.CategoryActive)
	if err != nil {
		return domain.ProductView{}, err
	}
	if v.Price, err = parseDecimal(price); err != nil {
		return domain.ProductView{}, err
	}
	return v, nil
}

func (t *pgTx) InsertProduct(ctx context.Context, p *domain.Product) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO products(name, description, price, stock, image, subcategory_id, category_id, active)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.Price.StringFixed(2), p.Stock, p.Image, p.SubcategoryID, p.CategoryID, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return writeErr(err)
}

func (t *pgTx) GetProduct(ctx context.Context, id int64, lock domain.LockMode) (domain.ProductView, error) {
	v, err := scanProduct(t.tx.QueryRow(ctx, productSelect+` WHERE p.id=$1`+lockClause(lock, "p"), id))
	if err != nil {
		return domain.ProductView{}, readErr(err)
	}
	return v, nil
}

func (t *pgTx) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.ProductView, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.CategoryID != 0 {
		where = append(where, "p.category_id="+arg(f.CategoryID))
	}
	if f.SubcategoryID != 0 {
		where = append(where, "p.subcategory_id="+arg(f.SubcategoryID))
	}
	if f.Search != "" {
		where = append(where, "p.name ILIKE "+arg("%"+escapeLike(f.Search)+"%"))
	}
	if f.PurchasableOnly {
		where = append(where, "p.active AND s.active AND c.active")
	}
	q := productSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY p.name, p.id"

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ProductView{}
	for rows.Next() {
		v, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// UpdateProduct writes the editable attributes; stock and activation have their
// own statements.
func (t *pgTx) UpdateProduct(ctx context.Context, p *domain.Product) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET name=$2, description=$3, price=$4::numeric, image=$5, updated_at=now()
		WHERE id=$1
		RETURNING updated_at`,
		p.ID, p.Name, p.Description, p.Price.StringFixed(2), p.Image,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return writeErr(readErr(err))
	}
	return nil
}

func (t *pgTx) SetProductActive(ctx context.Context, id int64, active bool) error {
	return affected(t.tx.Exec(ctx,
		`UPDATE products SET active=$2, updated_at=now() WHERE id=$1`, id, active))
}

func (t *pgTx) DeactivateProductsOfSubcategory(ctx context.Context, subcategoryID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET active=false, updated_at=now()
		WHERE subcategory_id=$1 AND active`, subcategoryID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) DeactivateProductsOfCategory(ctx context.Context, categoryID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET active=false, updated_at=now()
		WHERE active AND (category_id=$1
		   OR subcategory_id IN (SELECT id FROM subcategories WHERE category_id=$1))`, categoryID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if pgCode(err) == codeForeignKey {
		return fmt.Errorf("%w: %w", domain.ErrProductReferenced, err)
	}
	return affected(tag, err)
}
