package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Subcategory struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CategoryID  int64     `json:"category_id"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"` // NUMERIC(10,2)
	Stock         int             `json:"stock"`
	Image         string          `json:"image,omitempty"` // filename only, file lives in the image store
	SubcategoryID int64           `json:"subcategory_id"`
	CategoryID    int64           `json:"category_id"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ProductView is a product row read together with the live flags of its ancestors.
type ProductView struct {
	Product
	SubcategoryActive bool `json:"subcategory_active"`
	CategoryActive    bool `json:"category_active"`
}

// Purchasable is evaluated from the row as read; never cache the result.
func (p ProductView) Purchasable() bool {
	return p.Active && p.SubcategoryActive && p.CategoryActive
}

type CartItem struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"user_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	PriceAtAdd decimal.Decimal `json:"price_at_add"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (c CartItem) Subtotal() decimal.Decimal {
	return LineSubtotal(c.PriceAtAdd, c.Quantity)
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Total           decimal.Decimal `json:"total"`
	Status          Status          `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
	Phone           string          `json:"phone"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type OrderLineItem struct {
	ID           int64           `json:"id"`
	OrderID      string          `json:"order_id"`
	ProductID    int64           `json:"product_id"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ProductSales is one row of the best-seller aggregate.
type ProductSales struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// LineSubtotal returns price*qty rounded to cents.
func LineSubtotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

type EntityKind string

const (
	KindCategory    EntityKind = "category"
	KindSubcategory EntityKind = "subcategory"
	KindProduct     EntityKind = "product"
)

// MaxStock is the upper bound of the stock column (INTEGER).
const MaxStock = 1<<31 - 1
