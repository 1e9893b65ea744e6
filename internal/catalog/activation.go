package catalog

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/logging"
)

// Deactivate switches the entity off and cascades downwards in the same
// transaction: a category takes its subcategories and every product under it,
// a subcategory takes its products. Any failed write rolls the whole cascade back.
func (s *Service) Deactivate(ctx context.Context, kind domain.EntityKind, id int64) (Cascade, error) {
	res := Cascade{Kind: kind, ID: id}
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		res.Subcategories, res.Products = 0, 0
		switch kind {
		case domain.KindCategory:
			if _, err := tx.GetCategory(ctx, id, domain.ForUpdate); err != nil {
				return err
			}
			if err := tx.SetCategoryActive(ctx, id, false); err != nil {
				return err
			}
			n, err := tx.DeactivateSubcategoriesOf(ctx, id)
			if err != nil {
				return err
			}
			res.Subcategories = n
			if res.Products, err = tx.DeactivateProductsOfCategory(ctx, id); err != nil {
				return err
			}
		case domain.KindSubcategory:
			if _, err := tx.GetSubcategory(ctx, id, domain.ForUpdate); err != nil {
				return err
			}
			if err := tx.SetSubcategoryActive(ctx, id, false); err != nil {
				return err
			}
			n, err := tx.DeactivateProductsOfSubcategory(ctx, id)
			if err != nil {
				return err
			}
			res.Products = n
		case domain.KindProduct:
			if err := tx.SetProductActive(ctx, id, false); err != nil {
				return err
			}
		default:
			return &domain.ValidationError{Field: "kind", Reason: "unknown entity kind " + string(kind)}
		}
		return nil
	})
	s.Metrics.ObserveError(err)
	if err != nil {
		return Cascade{}, fmt.Errorf("deactivate %s %d: %w", kind, id, err)
	}

	s.Metrics.ObserveCascade(res.Subcategories, res.Products)
	logging.Info(ctx, "deactivated", "kind", kind, "id", id,
		"subcategories", res.Subcategories, "products", res.Products)
	if s.Events != nil {
		s.Events.CatalogDeactivated(ctx, kind, id, res.Subcategories, res.Products)
	}
	return res, nil
}

// Activate switches exactly one entity on. Ancestors and descendants are left as
// they are, so a product may be active under an inactive parent; Purchasable
// covers that case.
func (s *Service) Activate(ctx context.Context, kind domain.EntityKind, id int64) error {
	err := s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		switch kind {
		case domain.KindCategory:
			return tx.SetCategoryActive(ctx, id, true)
		case domain.KindSubcategory:
			return tx.SetSubcategoryActive(ctx, id, true)
		case domain.KindProduct:
			return tx.SetProductActive(ctx, id, true)
		}
		return &domain.ValidationError{Field: "kind", Reason: "unknown entity kind " + string(kind)}
	})
	if err != nil {
		return fmt.Errorf("activate %s %d: %w", kind, id, err)
	}
	return nil
}
