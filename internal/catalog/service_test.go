package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImages struct {
	deleted []string
	err     error
}

func (f *fakeImages) Delete(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.err
}

func (f *fakeImages) URL(name string) string { return "http://cdn.test/uploads/" + name }

type fakeEvents struct {
	cascades []Cascade
}

func (f *fakeEvents) CatalogDeactivated(_ context.Context, kind domain.EntityKind, id, subs, products int64) {
	f.cascades = append(f.cascades, Cascade{Kind: kind, ID: id, Subcategories: subs, Products: products})
}

type fixture struct {
	svc    *Service
	store  *memstore.Store
	images *fakeImages
	events *fakeEvents
}

func newFixture() *fixture {
	st := memstore.New()
	f := &fixture{store: st, images: &fakeImages{}, events: &fakeEvents{}}
	f.svc = &Service{Store: st, Images: f.images, Events: f.events}
	return f
}

func (f *fixture) category(t *testing.T, name string) domain.Category {
	t.Helper()
	c, err := f.svc.CreateCategory(context.Background(), CategoryInput{Name: name})
	require.NoError(t, err)
	return c
}

func (f *fixture) subcategory(t *testing.T, name string, catID int64) domain.Subcategory {
	t.Helper()
	s, err := f.svc.CreateSubcategory(context.Background(), SubcategoryInput{Name: name, CategoryID: catID})
	require.NoError(t, err)
	return s
}

func (f *fixture) product(t *testing.T, name string, sub domain.Subcategory) domain.ProductView {
	t.Helper()
	p, err := f.svc.CreateProduct(context.Background(), ProductInput{
		Name:          name,
		Price:         decimal.RequireFromString("9.99"),
		Stock:         10,
		Image:         name + ".png",
		SubcategoryID: sub.ID,
		CategoryID:    sub.CategoryID,
	})
	require.NoError(t, err)
	return p
}

func TestCreateProductCheckOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c1 := f.category(t, "Electronics")
	c2 := f.category(t, "Garden")
	s1 := f.subcategory(t, "Phones", c1.ID)

	in := func(catID, subID int64) ProductInput {
		return ProductInput{Name: "Pixel", Price: decimal.RequireFromString("1.00"), CategoryID: catID, SubcategoryID: subID}
	}

	_, err := f.svc.CreateProduct(ctx, in(999, s1.ID))
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
	_, err = f.svc.CreateProduct(ctx, in(c1.ID, 999))
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
	_, err = f.svc.CreateProduct(ctx, in(c2.ID, s1.ID))
	assert.ErrorIs(t, err, domain.ErrHierarchyMismatch)

	_, err = f.svc.Deactivate(ctx, domain.KindCategory, c1.ID)
	require.NoError(t, err)
	_, err = f.svc.CreateProduct(ctx, in(c1.ID, s1.ID))
	assert.ErrorIs(t, err, domain.ErrParentInactive)

	require.NoError(t, f.svc.Activate(ctx, domain.KindCategory, c1.ID))
	// subcategory stayed inactive: activation does not cascade
	_, err = f.svc.CreateProduct(ctx, in(c1.ID, s1.ID))
	assert.ErrorIs(t, err, domain.ErrParentInactive)

	require.NoError(t, f.svc.Activate(ctx, domain.KindSubcategory, s1.ID))
	p, err := f.svc.CreateProduct(ctx, in(c1.ID, s1.ID))
	require.NoError(t, err)
	assert.True(t, p.Purchasable())
}

func TestCreateSubcategoryUnderInactiveCategory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.category(t, "Toys")
	_, err := f.svc.Deactivate(ctx, domain.KindCategory, c.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateSubcategory(ctx, SubcategoryInput{Name: "Puzzles", CategoryID: c.ID})
	assert.ErrorIs(t, err, domain.ErrParentInactive)
	_, err = f.svc.CreateSubcategory(ctx, SubcategoryInput{Name: "Puzzles", CategoryID: 42})
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
}

func TestInputValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.category(t, "Books")
	s := f.subcategory(t, "Novels", c.ID)

	_, err := f.svc.CreateCategory(ctx, CategoryInput{Name: " x "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	base := ProductInput{Name: "Dune", Price: decimal.RequireFromString("12.50"), CategoryID: c.ID, SubcategoryID: s.ID}
	bad := []func(*ProductInput){
		func(p *ProductInput) { p.Price = decimal.RequireFromString("-1") },
		func(p *ProductInput) { p.Price = decimal.RequireFromString("1.005") },
		func(p *ProductInput) { p.Stock = -1 },
		func(p *ProductInput) { p.Image = "cover.bmp" },
		func(p *ProductInput) { p.Image = "../cover.png" },
		func(p *ProductInput) { p.Name = "D" },
	}
	for i, mutate := range bad {
		in := base
		mutate(&in)
		_, err := f.svc.CreateProduct(ctx, in)
		assert.ErrorIs(t, err, domain.ErrValidation, "case %d", i)
	}

	in := base
	in.Image = "COVER.JPEG"
	_, err = f.svc.CreateProduct(ctx, in)
	assert.NoError(t, err)
}

func TestDuplicateCategoryName(t *testing.T) {
	f := newFixture()
	f.category(t, "Music")
	_, err := f.svc.CreateCategory(context.Background(), CategoryInput{Name: "Music"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestDeactivateCategoryCascades(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.category(t, "Sports")
	s1 := f.subcategory(t, "Tennis", c.ID)
	s2 := f.subcategory(t, "Golf", c.ID)
	p1 := f.product(t, "racket", s1)
	p2 := f.product(t, "ball", s1)
	p3 := f.product(t, "club", s2)

	other := f.category(t, "Kitchen")
	pans := f.subcategory(t, "Pans", other.ID)
	keep := f.product(t, "pan", pans)

	res, err := f.svc.Deactivate(ctx, domain.KindCategory, c.ID)
	require.NoError(t, err)
	assert.Equal(t, Cascade{Kind: domain.KindCategory, ID: c.ID, Subcategories: 2, Products: 3}, res)
	assert.Equal(t, []Cascade{res}, f.events.cascades)

	for _, id := range []int64{p1.ID, p2.ID, p3.ID} {
		p, err := f.svc.GetProduct(ctx, id)
		require.NoError(t, err)
		assert.False(t, p.Active)
		assert.False(t, p.Purchasable())
	}
	p, err := f.svc.GetProduct(ctx, keep.ID)
	require.NoError(t, err)
	assert.True(t, p.Purchasable())
}

func TestDeactivateRollsBackOnFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.category(t, "Garden")
	s := f.subcategory(t, "Hoses", c.ID)
	p := f.product(t, "hose", s)

	f.store.FailOn("DeactivateProductsOfCategory", errors.New("write failed"))
	_, err := f.svc.Deactivate(ctx, domain.KindCategory, c.ID)
	require.Error(t, err)
	assert.Empty(t, f.events.cascades)

	got, err := f.svc.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
	sub, err := f.svc.GetSubcategory(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, sub.Active)
	pv, err := f.svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, pv.Purchasable())
}

func TestDeactivateSubcategoryLeavesCategory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.category(t, "Office")
	s1 := f.subcategory(t, "Paper", c.ID)
	s2 := f.subcategory(t, "Pens", c.ID)
	f.product(t, "a4", s1)
	pen := f.product(t, "gel", s2)

	res, err := f.svc.Deactivate(ctx, domain.KindSubcategory, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Products)
	assert.Zero(t, res.Subcategories)

	cat, err := f.svc.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, cat.Active)
	pv, err := f.svc.GetProduct(ctx, pen.ID)
	require.NoError(t, err)
	assert.True(t, pv.Purchasable())
}

func TestReactivatedProductUnderInactiveParentIsNotPurchasable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.category(t, "Pets")
	s := f.subcategory(t, "Cats", c.ID)
	p := f.product(t, "collar", s)

	_, err := f.svc.Deactivate(ctx, domain.KindSubcategory, s.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Activate(ctx, domain.KindProduct, p.ID))

	pv, err := f.svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, pv.Active)
	assert.False(t, pv.SubcategoryActive)
	assert.False(t, pv.Purchasable())

	list, err := f.svc.ListProducts(ctx, domain.ProductFilter{PurchasableOnly: true})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateProductDropsReplacedImage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.category(t, "Art")
	s := f.subcategory(t, "Prints", c.ID)
	p := f.product(t, "poster", s)

	upd, err := f.svc.UpdateProduct(ctx, p.ID, ProductUpdate{
		Name:  "Poster XL",
		Price: decimal.RequireFromString("19.99"),
		Image: "poster-xl.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "19.99", upd.Price.StringFixed(2))
	assert.Equal(t, 10, upd.Stock)
	assert.Equal(t, []string{"poster.png"}, f.images.deleted)
	assert.Equal(t, "http://cdn.test/uploads/poster-xl.png", f.svc.ImageURL(upd.Product))
}

func TestDeleteProduct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.category(t, "Food")
	s := f.subcategory(t, "Snacks", c.ID)
	p := f.product(t, "chips", s)

	// a failing image delete does not fail the call
	f.images.err = errors.New("permission denied")
	require.NoError(t, f.svc.DeleteProduct(ctx, p.ID))
	assert.Equal(t, []string{"chips.png"}, f.images.deleted)

	_, err := f.svc.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteProduct(ctx, p.ID), domain.ErrNotFound)
}

func TestDeactivateUnknownKind(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Deactivate(context.Background(), domain.EntityKind("brand"), 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
