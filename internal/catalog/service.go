// Package catalog owns categories, subcategories and products together with the
// activation rules that tie them to each other.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/logging"
	"github.com/ariefcatur/go-shop-consistency/internal/metrics"
)

// EventSink receives committed deactivations.
type EventSink interface {
	CatalogDeactivated(ctx context.Context, kind domain.EntityKind, id, subcategories, products int64)
}

// ImageStore is the file collaborator holding product images.
type ImageStore interface {
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

type Service struct {
	Store   domain.Store
	Images  ImageStore
	Events  EventSink
	Metrics *metrics.Metrics
}

// Cascade reports what a deactivation switched off besides the target itself.
type Cascade struct {
	Kind          domain.EntityKind `json:"kind"`
	ID            int64             `json:"id"`
	Subcategories int64             `json:"subcategories"`
	Products      int64             `json:"products"`
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (domain.Category, error) {
	in.normalize()
	if err := domain.Validate(in); err != nil {
		return domain.Category{}, err
	}
	c := domain.Category{Name: in.Name, Description: in.Description, Active: true}
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.InsertCategory(ctx, &c)
	})
	if err != nil {
		return domain.Category{}, fmt.Errorf("create category %q: %w", in.Name, err)
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (domain.Category, error) {
	in.normalize()
	if err := domain.Validate(in); err != nil {
		return domain.Category{}, err
	}
	c := domain.Category{ID: id, Name: in.Name, Description: in.Description}
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.UpdateCategory(ctx, &c)
	})
	if err != nil {
		return domain.Category{}, fmt.Errorf("update category %d: %w", id, err)
	}
	return c, nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	var c domain.Category
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		c, err = tx.GetCategory(ctx, id, domain.NoLock)
		return err
	})
	return c, err
}

func (s *Service) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	var out []domain.Category
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		out, err = tx.ListCategories(ctx, activeOnly)
		return err
	})
	return out, err
}

// CreateSubcategory requires an existing, active category.
func (s *Service) CreateSubcategory(ctx context.Context, in SubcategoryInput) (domain.Subcategory, error) {
	in.normalize()
	if err := domain.Validate(in); err != nil {
		return domain.Subcategory{}, err
	}
	sub := domain.Subcategory{Name: in.Name, Description: in.Description, CategoryID: in.CategoryID, Active: true}
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		cat, err := tx.GetCategory(ctx, in.CategoryID, domain.ForShare)
		if err != nil {
			return parentErr("category", in.CategoryID, err)
		}
		if !cat.Active {
			return fmt.Errorf("category %d: %w", cat.ID, domain.ErrParentInactive)
		}
		return tx.InsertSubcategory(ctx, &sub)
	})
	if err != nil {
		return domain.Subcategory{}, fmt.Errorf("create subcategory %q: %w", in.Name, err)
	}
	return sub, nil
}

func (s *Service) UpdateSubcategory(ctx context.Context, id int64, in SubcategoryUpdate) (domain.Subcategory, error) {
	in.normalize()
	if err := domain.Validate(in); err != nil {
		return domain.Subcategory{}, err
	}
	sub := domain.Subcategory{ID: id, Name: in.Name, Description: in.Description}
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.UpdateSubcategory(ctx, &sub)
	})
	if err != nil {
		return domain.Subcategory{}, fmt.Errorf("update subcategory %d: %w", id, err)
	}
	return sub, nil
}

func (s *Service) GetSubcategory(ctx context.Context, id int64) (domain.Subcategory, error) {
	var sub domain.Subcategory
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		sub, err = tx.GetSubcategory(ctx, id, domain.NoLock)
		return err
	})
	return sub, err
}

func (s *Service) ListSubcategories(ctx context.Context, f domain.SubcategoryFilter) ([]domain.Subcategory, error) {
	var out []domain.Subcategory
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		out, err = tx.ListSubcategories(ctx, f)
		return err
	})
	return out, err
}

// CreateProduct checks, in order: both parents exist, the subcategory belongs to
// the category, both parents are active.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (domain.ProductView, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return domain.ProductView{}, err
	}
	p := domain.Product{
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price.Round(2),
		Stock:         in.Stock,
		Image:         in.Image,
		SubcategoryID: in.SubcategoryID,
		CategoryID:    in.CategoryID,
		Active:        true,
	}
	var view domain.ProductView
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		cat, err := tx.GetCategory(ctx, in.CategoryID, domain.ForShare)
		if err != nil {
			return parentErr("category", in.CategoryID, err)
		}
		sub, err := tx.GetSubcategory(ctx, in.SubcategoryID, domain.ForShare)
		if err != nil {
			return parentErr("subcategory", in.SubcategoryID, err)
		}
		if sub.CategoryID != cat.ID {
			return fmt.Errorf("subcategory %d belongs to category %d, not %d: %w",
				sub.ID, sub.CategoryID, cat.ID, domain.ErrHierarchyMismatch)
		}
		if !cat.Active {
			return fmt.Errorf("category %d: %w", cat.ID, domain.ErrParentInactive)
		}
		if !sub.Active {
			return fmt.Errorf("subcategory %d: %w", sub.ID, domain.ErrParentInactive)
		}
		if err := tx.InsertProduct(ctx, &p); err != nil {
			return err
		}
		view, err = tx.GetProduct(ctx, p.ID, domain.NoLock)
		return err
	})
	if err != nil {
		return domain.ProductView{}, fmt.Errorf("create product %q: %w", in.Name, err)
	}
	return view, nil
}

// UpdateProduct replaces the editable attributes. Stock belongs to the stock ledger.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductUpdate) (domain.ProductView, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return domain.ProductView{}, err
	}
	var (
		view     domain.ProductView
		oldImage string
	)
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		cur, err := tx.GetProduct(ctx, id, domain.ForUpdate)
		if err != nil {
			return err
		}
		oldImage = cur.Image
		p := cur.Product
		p.Name, p.Description, p.Price, p.Image = in.Name, in.Description, in.Price.Round(2), in.Image
		if err := tx.UpdateProduct(ctx, &p); err != nil {
			return err
		}
		view, err = tx.GetProduct(ctx, id, domain.NoLock)
		return err
	})
	if err != nil {
		return domain.ProductView{}, fmt.Errorf("update product %d: %w", id, err)
	}
	if oldImage != "" && oldImage != view.Image {
		s.dropImage(ctx, oldImage)
	}
	return view, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.ProductView, error) {
	var v domain.ProductView
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		v, err = tx.GetProduct(ctx, id, domain.NoLock)
		return err
	})
	return v, err
}

func (s *Service) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.ProductView, error) {
	f.Search = strings.TrimSpace(f.Search)
	var out []domain.ProductView
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		out, err = tx.ListProducts(ctx, f)
		return err
	})
	return out, err
}

// DeleteProduct removes a product no order refers to. Its cart rows go with it.
// The image file is removed after commit and only logged on failure.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	var image string
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		p, err := tx.GetProduct(ctx, id, domain.ForUpdate)
		if err != nil {
			return err
		}
		image = p.Image
		return tx.DeleteProduct(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if image != "" {
		s.dropImage(ctx, image)
	}
	return nil
}

// ImageURL is empty when the product has no image.
func (s *Service) ImageURL(p domain.Product) string {
	if p.Image == "" || s.Images == nil {
		return ""
	}
	return s.Images.URL(p.Image)
}

func (s *Service) dropImage(ctx context.Context, name string) {
	if s.Images == nil {
		return
	}
	if err := s.Images.Delete(ctx, name); err != nil {
		s.Metrics.ObserveImageDeleteFailure()
		logging.Warn(ctx, "image delete failed", "image", name, "err", err)
	}
}

func parentErr(kind string, id int64, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrParentNotFound)
	}
	return err
}
