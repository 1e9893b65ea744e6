package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-shop-consistency/internal/catalog"
	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/stock"
	"github.com/go-chi/chi/v5"
)

type CatalogHandler struct {
	Catalog *catalog.Service
	Stock   *stock.Ledger
}

// productResponse adds the read-time derived fields to a product.
type productResponse struct {
	domain.ProductView
	Purchasable bool   `json:"purchasable"`
	ImageURL    string `json:"image_url,omitempty"`
}

func (h *CatalogHandler) product(v domain.ProductView) productResponse {
	return productResponse{ProductView: v, Purchasable: v.Purchasable(), ImageURL: h.Catalog.ImageURL(v.Product)}
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)
	r.Get("/categories/{id}", h.getCategory)
	r.Put("/categories/{id}", h.updateCategory)
	r.Post("/categories/{id}/activate", h.activate(domain.KindCategory))
	r.Post("/categories/{id}/deactivate", h.deactivate(domain.KindCategory))

	r.Get("/subcategories", h.listSubcategories)
	r.Post("/subcategories", h.createSubcategory)
	r.Get("/subcategories/{id}", h.getSubcategory)
	r.Put("/subcategories/{id}", h.updateSubcategory)
	r.Post("/subcategories/{id}/activate", h.activate(domain.KindSubcategory))
	r.Post("/subcategories/{id}/deactivate", h.deactivate(domain.KindSubcategory))

	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)
	r.Post("/products/{id}/activate", h.activate(domain.KindProduct))
	r.Post("/products/{id}/deactivate", h.deactivate(domain.KindProduct))
	r.Get("/products/{id}/stock", h.getStock)
	r.Post("/products/{id}/restock", h.restock)
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Catalog.ListCategories(r.Context(), queryBool(r, "active"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *CatalogHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Catalog.CreateCategory(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Catalog.GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in catalog.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Catalog.UpdateCategory(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) listSubcategories(w http.ResponseWriter, r *http.Request) {
	catID, err := queryID(r, "category_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ss, err := h.Catalog.ListSubcategories(r.Context(), domain.SubcategoryFilter{
		CategoryID: catID,
		ActiveOnly: queryBool(r, "active"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

func (h *CatalogHandler) createSubcategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.SubcategoryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.Catalog.CreateSubcategory(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *CatalogHandler) getSubcategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.Catalog.GetSubcategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *CatalogHandler) updateSubcategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in catalog.SubcategoryUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.Catalog.UpdateSubcategory(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	catID, err := queryID(r, "category_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	subID, err := queryID(r, "subcategory_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ps, err := h.Catalog.ListProducts(r.Context(), domain.ProductFilter{
		CategoryID:      catID,
		SubcategoryID:   subID,
		Search:          r.URL.Query().Get("search"),
		PurchasableOnly: queryBool(r, "purchasable"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]productResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, h.product(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Catalog.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.product(p))
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.product(p))
}

func (h *CatalogHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in catalog.ProductUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Catalog.UpdateProduct(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.product(p))
}

func (h *CatalogHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Catalog.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) activate(kind domain.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := h.Catalog.Activate(r.Context(), kind, id); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "id": id, "active": true})
	}
}

func (h *CatalogHandler) deactivate(kind domain.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		res, err := h.Catalog.Deactivate(r.Context(), kind, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type stockResponse struct {
	ProductID int64 `json:"product_id"`
	Stock     int   `json:"stock"`
}

func (h *CatalogHandler) getStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.Stock.Available(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: id, Stock: n})
}

type quantityReq struct {
	Quantity int `json:"quantity"`
}

func (h *CatalogHandler) restock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req quantityReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.Stock.Restock(r.Context(), id, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: id, Stock: n})
}
