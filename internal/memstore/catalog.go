package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
)

func byNameThenID(an, bn string, ai, bi int64) int {
	if c := cmp.Compare(an, bn); c != 0 {
		return c
	}
	return cmp.Compare(ai, bi)
}

func (t *tx) InsertCategory(ctx context.Context, c *domain.Category) error {
	if err := t.fault("InsertCategory"); err != nil {
		return err
	}
	for _, x := range t.st.categories {
		if x.Name == c.Name {
			return domain.ErrDuplicate
		}
	}
	c.ID = t.st.next()
	c.CreatedAt, c.UpdatedAt = t.now, t.now
	t.st.categories[c.ID] = *c
	return nil
}

func (t *tx) GetCategory(ctx context.Context, id int64, _ domain.LockMode) (domain.Category, error) {
	c, ok := t.st.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrNotFound
	}
	return c, nil
}

func (t *tx) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	out := make([]domain.Category, 0, len(t.st.categories))
	for _, c := range t.st.categories {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Category) int { return byNameThenID(a.Name, b.Name, a.ID, b.ID) })
	return out, nil
}

func (t *tx) UpdateCategory(ctx context.Context, c *domain.Category) error {
	if err := t.fault("UpdateCategory"); err != nil {
		return err
	}
	cur, ok := t.st.categories[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, x := range t.st.categories {
		if x.ID != c.ID && x.Name == c.Name {
			return domain.ErrDuplicate
		}
	}
	cur.Name, cur.Description, cur.UpdatedAt = c.Name, c.Description, t.now
	t.st.categories[c.ID] = cur
	*c = cur
	return nil
}

func (t *tx) SetCategoryActive(ctx context.Context, id int64, active bool) error {
	if err := t.fault("SetCategoryActive"); err != nil {
		return err
	}
	c, ok := t.st.categories[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Active, c.UpdatedAt = active, t.now
	t.st.categories[id] = c
	return nil
}

func (t *tx) InsertSubcategory(ctx context.Context, s *domain.Subcategory) error {
	if err := t.fault("InsertSubcategory"); err != nil {
		return err
	}
	if _, ok := t.st.categories[s.CategoryID]; !ok {
		return domain.ErrParentNotFound
	}
	for _, x := range t.st.subcategories {
		if x.CategoryID == s.CategoryID && x.Name == s.Name {
			return domain.ErrDuplicate
		}
	}
	s.ID = t.st.next()
	s.CreatedAt, s.UpdatedAt = t.now, t.now
	t.st.subcategories[s.ID] = *s
	return nil
}

func (t *tx) GetSubcategory(ctx context.Context, id int64, _ domain.LockMode) (domain.Subcategory, error) {
	s, ok := t.st.subcategories[id]
	if !ok {
		return domain.Subcategory{}, domain.ErrNotFound
	}
	return s, nil
}

func (t *tx) ListSubcategories(ctx context.Context, f domain.SubcategoryFilter) ([]domain.Subcategory, error) {
	out := []domain.Subcategory{}
	for _, s := range t.st.subcategories {
		if f.CategoryID != 0 && s.CategoryID != f.CategoryID {
			continue
		}
		if f.ActiveOnly && !s.Active {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b domain.Subcategory) int { return byNameThenID(a.Name, b.Name, a.ID, b.ID) })
	return out, nil
}

func (t *tx) UpdateSubcategory(ctx context.Context, s *domain.Subcategory) error {
	if err := t.fault("UpdateSubcategory"); err != nil {
		return err
	}
	cur, ok := t.st.subcategories[s.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, x := range t.st.subcategories {
		if x.ID != s.ID && x.CategoryID == cur.CategoryID && x.Name == s.Name {
			return domain.ErrDuplicate
		}
	}
	cur.Name, cur.Description, cur.UpdatedAt = s.Name, s.Description, t.now
	t.st.subcategories[s.ID] = cur
	*s = cur
	return nil
}

func (t *tx) SetSubcategoryActive(ctx context.Context, id int64, active bool) error {
	if err := t.fault("SetSubcategoryActive"); err != nil {
		return err
	}
	s, ok := t.st.subcategories[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Active, s.UpdatedAt = active, t.now
	t.st.subcategories[id] = s
	return nil
}

func (t *tx) DeactivateSubcategoriesOf(ctx context.Context, categoryID int64) (int64, error) {
	if err := t.fault("DeactivateSubcategoriesOf"); err != nil {
		return 0, err
	}
	var n int64
	for id, s := range t.st.subcategories {
		if s.CategoryID == categoryID && s.Active {
			s.Active, s.UpdatedAt = false, t.now
			t.st.subcategories[id] = s
			n++
		}
	}
	return n, nil
}

func (t *tx) view(p domain.Product) domain.ProductView {
	return domain.ProductView{
		Product:           p,
		SubcategoryActive: t.st.subcategories[p.SubcategoryID].Active,
		CategoryActive:    t.st.categories[p.CategoryID].Active,
	}
}

func (t *tx) InsertProduct(ctx context.Context, p *domain.Product) error {
	if err := t.fault("InsertProduct"); err != nil {
		return err
	}
	if _, ok := t.st.subcategories[p.SubcategoryID]; !ok {
		return domain.ErrParentNotFound
	}
	if _, ok := t.st.categories[p.CategoryID]; !ok {
		return domain.ErrParentNotFound
	}
	p.ID = t.st.next()
	p.CreatedAt, p.UpdatedAt = t.now, t.now
	t.st.products[p.ID] = *p
	return nil
}

func (t *tx) GetProduct(ctx context.Context, id int64, _ domain.LockMode) (domain.ProductView, error) {
	p, ok := t.st.products[id]
	if !ok {
		return domain.ProductView{}, domain.ErrNotFound
	}
	return t.view(p), nil
}

func (t *tx) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.ProductView, error) {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := []domain.ProductView{}
	for _, p := range t.st.products {
		if f.CategoryID != 0 && p.CategoryID != f.CategoryID {
			continue
		}
		if f.SubcategoryID != 0 && p.SubcategoryID != f.SubcategoryID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		v := t.view(p)
		if f.PurchasableOnly && !v.Purchasable() {
			continue
		}
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b domain.ProductView) int { return byNameThenID(a.Name, b.Name, a.ID, b.ID) })
	return out, nil
}

func (t *tx) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if err := t.fault("UpdateProduct"); err != nil {
		return err
	}
	cur, ok := t.st.products[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Name, cur.Description, cur.Price, cur.Image = p.Name, p.Description, p.Price, p.Image
	cur.UpdatedAt = t.now
	t.st.products[p.ID] = cur
	*p = cur
	return nil
}

func (t *tx) SetProductActive(ctx context.Context, id int64, active bool) error {
	if err := t.fault("SetProductActive"); err != nil {
		return err
	}
	p, ok := t.st.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active, p.UpdatedAt = active, t.now
	t.st.products[id] = p
	return nil
}

func (t *tx) deactivateProducts(match func(domain.Product) bool) int64 {
	var n int64
	for id, p := range t.st.products {
		if p.Active && match(p) {
			p.Active, p.UpdatedAt = false, t.now
			t.st.products[id] = p
			n++
		}
	}
	return n
}

func (t *tx) DeactivateProductsOfSubcategory(ctx context.Context, subcategoryID int64) (int64, error) {
	if err := t.fault("DeactivateProductsOfSubcategory"); err != nil {
		return 0, err
	}
	return t.deactivateProducts(func(p domain.Product) bool { return p.SubcategoryID == subcategoryID }), nil
}

func (t *tx) DeactivateProductsOfCategory(ctx context.Context, categoryID int64) (int64, error) {
	if err := t.fault("DeactivateProductsOfCategory"); err != nil {
		return 0, err
	}
	return t.deactivateProducts(func(p domain.Product) bool {
		return p.CategoryID == categoryID || t.st.subcategories[p.SubcategoryID].CategoryID == categoryID
	}), nil
}

func (t *tx) DeleteProduct(ctx context.Context, id int64) error {
	if err := t.fault("DeleteProduct"); err != nil {
		return err
	}
	if _, ok := t.st.products[id]; !ok {
		return domain.ErrNotFound
	}
	for _, li := range t.st.lineItems {
		if li.ProductID == id {
			return domain.ErrProductReferenced
		}
	}
	for k := range t.st.cart {
		if k.productID == id {
			delete(t.st.cart, k)
		}
	}
	delete(t.st.products, id)
	return nil
}
