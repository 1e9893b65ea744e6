package catalog

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	imagePattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif)$`)
	// NUMERIC(10,2)
	maxPrice = decimal.RequireFromString("99999999.99")
)

type CategoryInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description"`
}

func (in *CategoryInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
}

type SubcategoryInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description"`
	CategoryID  int64  `json:"category_id" validate:"required"`
}

func (in *SubcategoryInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
}

type SubcategoryUpdate struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description"`
}

func (in *SubcategoryUpdate) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
}

type ProductInput struct {
	Name          string          `json:"name" validate:"required,min=2,max=200"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock" validate:"gte=0,lte=2147483647"`
	Image         string          `json:"image"`
	SubcategoryID int64           `json:"subcategory_id" validate:"required"`
	CategoryID    int64           `json:"category_id" validate:"required"`
}

func (in *ProductInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Image = strings.TrimSpace(in.Image)
}

func (in ProductInput) validate() error {
	if err := domain.Validate(in); err != nil {
		return err
	}
	if err := validatePrice(in.Price); err != nil {
		return err
	}
	return validateImage(in.Image)
}

type ProductUpdate struct {
	Name        string          `json:"name" validate:"required,min=2,max=200"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
}

func (in *ProductUpdate) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Image = strings.TrimSpace(in.Image)
}

func (in ProductUpdate) validate() error {
	if err := domain.Validate(in); err != nil {
		return err
	}
	if err := validatePrice(in.Price); err != nil {
		return err
	}
	return validateImage(in.Image)
}

func validatePrice(p decimal.Decimal) error {
	switch {
	case p.IsNegative():
		return &domain.ValidationError{Field: "price", Reason: "must not be negative"}
	case !p.Equal(p.Round(2)):
		return &domain.ValidationError{Field: "price", Reason: "must have at most 2 decimals"}
	case p.GreaterThan(maxPrice):
		return &domain.ValidationError{Field: "price", Reason: "must be at most " + maxPrice.String()}
	}
	return nil
}

// validateImage accepts an empty name or a bare jpg/jpeg/png/gif filename.
func validateImage(name string) error {
	if name == "" {
		return nil
	}
	if filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return &domain.ValidationError{Field: "image", Reason: "must be a bare file name"}
	}
	if !imagePattern.MatchString(name) {
		return &domain.ValidationError{Field: "image", Reason: "must be a jpg, jpeg, png or gif file"}
	}
	return nil
}
