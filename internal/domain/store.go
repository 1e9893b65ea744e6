package domain

import "context"

// Store is the transactional storage handle every operation is threaded through.
//
// InTx runs fn inside one transaction. If fn returns an error nothing it wrote is
// kept. A transaction aborted by the store (or by ctx) is reported as
// ErrConcurrencyConflict.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// LockMode selects the row lock a read takes inside a transaction.
type LockMode int

const (
	NoLock LockMode = iota
	ForShare
	ForUpdate
)

type Tx interface {
	CatalogTx
	StockTx
	CartTx
	OrderTx
}

type SubcategoryFilter struct {
	CategoryID int64 // 0 = any
	ActiveOnly bool
}

type ProductFilter struct {
	CategoryID      int64 // 0 = any
	SubcategoryID   int64 // 0 = any
	Search          string
	PurchasableOnly bool
}

type CatalogTx interface {
	InsertCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id int64, lock LockMode) (Category, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]Category, error)
	UpdateCategory(ctx context.Context, c *Category) error
	SetCategoryActive(ctx context.Context, id int64, active bool) error

	InsertSubcategory(ctx context.Context, s *Subcategory) error
	GetSubcategory(ctx context.Context, id int64, lock LockMode) (Subcategory, error)
	ListSubcategories(ctx context.Context, f SubcategoryFilter) ([]Subcategory, error)
	UpdateSubcategory(ctx context.Context, s *Subcategory) error
	SetSubcategoryActive(ctx context.Context, id int64, active bool) error
	// DeactivateSubcategoriesOf returns the number of rows switched off.
	DeactivateSubcategoriesOf(ctx context.Context, categoryID int64) (int64, error)

	InsertProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id int64, lock LockMode) (ProductView, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]ProductView, error)
	UpdateProduct(ctx context.Context, p *Product) error
	SetProductActive(ctx context.Context, id int64, active bool) error
	DeactivateProductsOfSubcategory(ctx context.Context, subcategoryID int64) (int64, error)
	// DeactivateProductsOfCategory covers products whose category or subcategory
	// belongs to categoryID.
	DeactivateProductsOfCategory(ctx context.Context, categoryID int64) (int64, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type StockTx interface {
	// DecrementStock is a single conditional write:
	// stock = stock - qty WHERE id = productID AND stock >= qty.
	// ok is false when no row matched; stock is then the value observed.
	DecrementStock(ctx context.Context, productID int64, qty int) (stock int, ok bool, err error)
	// IncrementStock adds qty unless the result would exceed MaxStock.
	IncrementStock(ctx context.Context, productID int64, qty int) (stock int, ok bool, err error)
	GetStock(ctx context.Context, productID int64) (int, error)
}

type CartTx interface {
	// UpsertCartItem inserts the row or adds item.Quantity to the existing
	// (user, product) row. PriceAtAdd of an existing row is never touched.
	// item is overwritten with the stored row.
	UpsertCartItem(ctx context.Context, item *CartItem) error
	GetCartItem(ctx context.Context, userID string, productID int64) (CartItem, error)
	SetCartItemQuantity(ctx context.Context, userID string, productID int64, qty int) error
	DeleteCartItem(ctx context.Context, userID string, productID int64) error
	// ListCartItems returns the most recently added row first. With a lock the
	// rows come in product id order and stay locked until the tx ends; rows
	// deleted by a transaction that held them first are not returned.
	ListCartItems(ctx context.Context, userID string, lock LockMode) ([]CartItem, error)
	ClearCart(ctx context.Context, userID string) (int64, error)
}

type OrderTx interface {
	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderLineItem(ctx context.Context, li *OrderLineItem) error
	GetOrder(ctx context.Context, id string, lock LockMode) (Order, error)
	ListOrderLineItems(ctx context.Context, orderID string) ([]OrderLineItem, error)
	ListOrders(ctx context.Context, userID string) ([]Order, error)
	SetOrderStatus(ctx context.Context, id string, status Status) error
	// BestSellers sums line item quantities per product, highest first,
	// ties by ascending product id.
	BestSellers(ctx context.Context, limit int) ([]ProductSales, error)
}
