package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-shop-consistency/internal/cart"
	"github.com/ariefcatur/go-shop-consistency/internal/catalog"
	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/images"
	"github.com/ariefcatur/go-shop-consistency/internal/memstore"
	"github.com/ariefcatur/go-shop-consistency/internal/metrics"
	"github.com/ariefcatur/go-shop-consistency/internal/orders"
	"github.com/ariefcatur/go-shop-consistency/internal/redisx"
	"github.com/ariefcatur/go-shop-consistency/internal/stock"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t     *testing.T
	store *memstore.Store
	mr    *miniredis.Miniredis
	r     *chi.Mux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })

	m := metrics.New("test")
	imgs := &images.DiskStore{Fs: afero.NewMemMapFs(), Dir: "/uploads", BaseURL: "http://cdn.test/"}
	catalogSvc := &catalog.Service{Store: store, Images: imgs, Metrics: m}
	orderSvc := &orders.Service{Store: store, Metrics: m}

	r := NewRouter(m)
	(&CatalogHandler{Catalog: catalogSvc, Stock: &stock.Ledger{Store: store, Metrics: m}}).Register(r)
	(&CartHandler{Cart: &cart.Service{Store: store, Metrics: m}}).Register(r)
	(&OrdersHandler{Orders: orderSvc, Redis: rdb}).Register(r)
	(&ReportsHandler{Orders: orderSvc, Catalog: catalogSvc, Redis: rdb}).Register(r)
	return &fixture{t: t, store: store, mr: mr, r: r}
}

func (f *fixture) do(method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.r.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type idBody struct {
	ID int64 `json:"id"`
}

// seedProduct creates a category, a subcategory and a product with the given stock.
func (f *fixture) seedProduct(stockQty int) (categoryID, productID int64) {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/categories", "", map[string]any{"name": "Electronics"})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decodeBody[idBody](f.t, rec)

	rec = f.do(http.MethodPost, "/subcategories", "", map[string]any{"name": "Televisions", "category_id": cat.ID})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decodeBody[idBody](f.t, rec)

	rec = f.do(http.MethodPost, "/products", "", map[string]any{
		"name":           "OLED 55",
		"price":          "499.90",
		"stock":          stockQty,
		"image":          "oled.png",
		"category_id":    cat.ID,
		"subcategory_id": sub.ID,
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return cat.ID, decodeBody[idBody](f.t, rec).ID
}

type orderBody struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Total      string `json:"total"`
	Idempotent bool   `json:"idempotent"`
	Items      []struct {
		ProductID    int64  `json:"product_id"`
		Quantity     int    `json:"quantity"`
		PriceAtOrder string `json:"price_at_order"`
	} `json:"items"`
}

func (f *fixture) checkout(user string, productID int64, qty int, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/cart/items", user, map[string]any{"product_id": productID, "quantity": qty})
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	return f.do(http.MethodPost, "/orders", user, map[string]any{
		"shipping_address": "Jl. Merdeka 1",
		"phone":            "0812345678",
	}, headers...)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestUserRoutesRequireHeader(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/cart", "/orders"} {
		rec := f.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "unauthenticated", decodeBody[errorBody](t, rec).Code)
	}
}

func TestCreateProductResponse(t *testing.T) {
	f := newFixture(t)
	_, pid := f.seedProduct(5)

	rec := f.do(http.MethodGet, fmt.Sprintf("/products/%d", pid), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, got["purchasable"])
	assert.Equal(t, "http://cdn.test/uploads/oled.png", got["image_url"])
	assert.Equal(t, "499.9", got["price"])
}

func TestBadBodyIsValidationError(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/categories", "", map[string]any{"name": "Books", "color": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "body", decodeBody[errorBody](t, rec).Field)

	rec = f.do(http.MethodGet, "/products/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductUnderMismatchedParents(t *testing.T) {
	f := newFixture(t)
	catA, _ := f.seedProduct(1)
	rec := f.do(http.MethodPost, "/categories", "", map[string]any{"name": "Garden"})
	catB := decodeBody[idBody](t, rec)
	rec = f.do(http.MethodPost, "/subcategories", "", map[string]any{"name": "Tools", "category_id": catB.ID})
	subB := decodeBody[idBody](t, rec)

	rec = f.do(http.MethodPost, "/products", "", map[string]any{
		"name": "Rake", "price": "5", "stock": 1, "category_id": catA, "subcategory_id": subB.ID,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "hierarchy_mismatch", decodeBody[errorBody](t, rec).Code)
}

func TestAddToCartBeyondStock(t *testing.T) {
	f := newFixture(t)
	_, pid := f.seedProduct(5)

	rec := f.do(http.MethodPost, "/cart/items", "u1", map[string]any{"product_id": pid, "quantity": 6})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "insufficient_stock", body.Code)
	assert.Equal(t, pid, body.ProductID)
	assert.Equal(t, 6, body.Requested)
	require.NotNil(t, body.Available)
	assert.Equal(t, 5, *body.Available)
}

func TestDeactivatedCategoryBlocksCart(t *testing.T) {
	f := newFixture(t)
	cid, pid := f.seedProduct(5)

	rec := f.do(http.MethodPost, fmt.Sprintf("/categories/%d/deactivate", cid), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[catalog.Cascade](t, rec)
	assert.Equal(t, int64(1), res.Subcategories)
	assert.Equal(t, int64(1), res.Products)

	rec = f.do(http.MethodGet, fmt.Sprintf("/products/%d", pid), "", nil)
	assert.Equal(t, false, decodeBody[map[string]any](t, rec)["purchasable"])

	rec = f.do(http.MethodPost, "/cart/items", "u1", map[string]any{"product_id": pid, "quantity": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "product_not_purchasable", decodeBody[errorBody](t, rec).Code)
}

func TestCheckoutAndIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	_, pid := f.seedProduct(5)

	rec := f.checkout("u1", pid, 2, HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placed := decodeBody[orderBody](t, rec)
	assert.Equal(t, "pending", placed.Status)
	assert.Equal(t, "999.8", placed.Total)
	require.Len(t, placed.Items, 1)
	assert.Equal(t, "499.9", placed.Items[0].PriceAtOrder)

	rec = f.do(http.MethodPost, "/orders", "u1", map[string]any{
		"shipping_address": "Jl. Merdeka 1",
		"phone":            "0812345678",
	}, HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	replay := decodeBody[orderBody](t, rec)
	assert.True(t, replay.Idempotent)
	assert.Equal(t, placed.ID, replay.ID)

	rec = f.do(http.MethodGet, fmt.Sprintf("/products/%d/stock", pid), "", nil)
	assert.Equal(t, 3, decodeBody[stockResponse](t, rec).Stock)

	rec = f.do(http.MethodGet, "/cart", "u1", nil)
	assert.Empty(t, decodeBody[cart.Cart](t, rec).Lines)
}

func TestFailedCheckoutReleasesIdempotencyKey(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/orders", "u1", map[string]any{
		"shipping_address": "Jl. Merdeka 1",
		"phone":            "0812345678",
	}, HeaderIdempotencyKey, "k-2")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "empty_cart", decodeBody[errorBody](t, rec).Code)
	assert.False(t, f.mr.Exists(fmt.Sprintf(redisx.KeyIdemCheckout, "u1", "k-2")))
}

func TestInFlightIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mr.Set(fmt.Sprintf(redisx.KeyIdemCheckout, "u1", "k-3"), redisx.IdemPending))

	rec := f.do(http.MethodPost, "/orders", "u1", map[string]any{
		"shipping_address": "Jl. Merdeka 1",
		"phone":            "0812345678",
	}, HeaderIdempotencyKey, "k-3")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "in_progress", decodeBody[errorBody](t, rec).Code)
}

func TestOrderStatusCache(t *testing.T) {
	f := newFixture(t)
	_, pid := f.seedProduct(5)
	o := decodeBody[orderBody](t, f.checkout("u1", pid, 1))
	statusPath := "/orders/" + o.ID + "/status"

	rec := f.do(http.MethodGet, statusPath, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
	assert.Equal(t, domain.StatusPending, decodeBody[redisx.OrderStatus](t, rec).Status)

	rec = f.do(http.MethodPost, "/orders/"+o.ID+"/pay", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodGet, statusPath, "u1", nil)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
	assert.Equal(t, domain.StatusPaid, decodeBody[redisx.OrderStatus](t, rec).Status)

	f.mr.Del(fmt.Sprintf(redisx.KeyOrderStatus, o.ID))
	rec = f.do(http.MethodGet, statusPath, "u1", nil)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Equal(t, domain.StatusPaid, decodeBody[redisx.OrderStatus](t, rec).Status)
	rec = f.do(http.MethodGet, statusPath, "u1", nil)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
}

func TestStaleStatusReadDoesNotOverwriteCache(t *testing.T) {
	f := newFixture(t)
	_, pid := f.seedProduct(5)
	o := decodeBody[orderBody](t, f.checkout("u1", pid, 1))
	statusPath := "/orders/" + o.ID + "/status"

	// a status read that loaded the order before it was paid
	rec := f.do(http.MethodGet, "/orders/"+o.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var before domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))

	rec = f.do(http.MethodPost, "/orders/"+o.ID+"/pay", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// ... and writes what it saw once the transition is cached
	rdb := redisx.New(f.mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	written, err := redisx.CacheOrderStatus(context.Background(), rdb, orderStatus(before), redisx.TTLStatusCache)
	require.NoError(t, err)
	assert.False(t, written)

	rec = f.do(http.MethodGet, statusPath, "u1", nil)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
	assert.Equal(t, domain.StatusPaid, decodeBody[redisx.OrderStatus](t, rec).Status)
}

func TestOrderStatusOnlyForOwner(t *testing.T) {
	f := newFixture(t)
	_, pid := f.seedProduct(5)
	o := decodeBody[orderBody](t, f.checkout("u1", pid, 1))
	statusPath := "/orders/" + o.ID + "/status"

	rec := f.do(http.MethodGet, statusPath, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.mr.Del(fmt.Sprintf(redisx.KeyOrderStatus, o.ID))
	rec = f.do(http.MethodGet, statusPath, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, f.mr.Exists(fmt.Sprintf(redisx.KeyOrderStatus, o.ID)))

	rec = f.do(http.MethodGet, statusPath, "u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	_, pid := f.seedProduct(5)
	o := decodeBody[orderBody](t, f.checkout("u1", pid, 2))

	rec := f.do(http.MethodGet, "/orders/"+o.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(http.MethodPost, "/orders/"+o.ID+"/cancel", "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/orders/"+o.ID+"/ship", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", decodeBody[errorBody](t, rec).Code)

	rec = f.do(http.MethodPost, "/orders/"+o.ID+"/cancel", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodGet, fmt.Sprintf("/products/%d/stock", pid), "", nil)
	assert.Equal(t, 5, decodeBody[stockResponse](t, rec).Stock)

	rec = f.do(http.MethodGet, "/orders", "u1", nil)
	list := decodeBody[[]orderBody](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "cancelled", list[0].Status)
}

func TestBestSellersReport(t *testing.T) {
	f := newFixture(t)
	_, pid := f.seedProduct(10)
	require.Equal(t, http.StatusCreated, f.checkout("u1", pid, 3).Code)

	rec := f.do(http.MethodGet, "/reports/best-sellers?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rows := decodeBody[[]bestSellerRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, pid, rows[0].ProductID)
	assert.Equal(t, int64(3), rows[0].Quantity)
	assert.Equal(t, "OLED 55", rows[0].Name)
	assert.True(t, f.mr.Exists(fmt.Sprintf(redisx.KeyBestSellers, 5)))

	rec = f.do(http.MethodGet, "/reports/best-sellers?limit=5", "", nil)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))

	rec = f.do(http.MethodGet, "/reports/best-sellers?limit=500", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoreConflictIsRetryable(t *testing.T) {
	f := newFixture(t)
	_, pid := f.seedProduct(5)
	f.store.FailOn("UpsertCartItem", domain.ErrConcurrencyConflict)

	rec := f.do(http.MethodPost, "/cart/items", "u1", map[string]any{"product_id": pid, "quantity": 1})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "concurrency_conflict", decodeBody[errorBody](t, rec).Code)
}

func TestUnexpectedErrorIsHidden(t *testing.T) {
	f := newFixture(t)
	_, pid := f.seedProduct(5)
	f.store.FailOn("UpsertCartItem", assert.AnError)

	rec := f.do(http.MethodPost, "/cart/items", "u1", map[string]any{"product_id": pid, "quantity": 1})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeBody[errorBody](t, rec).Error)
}
