package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-shop-consistency/internal/cart"
	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	Cart *cart.Service
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/", h.get)
		r.Delete("/", h.clear)
		r.Post("/items", h.addItem)
		r.Patch("/items/{productID}", h.updateItem)
		r.Delete("/items/{productID}", h.removeItem)
		r.Post("/sync", h.sync)
	})
}

type addItemReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Cart.GetCart(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID <= 0 {
		writeError(w, r, &domain.ValidationError{Field: "product_id", Reason: "is required"})
		return
	}
	it, err := h.Cart.AddItem(r.Context(), userID(r), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "productID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req quantityReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	it, err := h.Cart.UpdateQuantity(r.Context(), userID(r), pid, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "productID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Cart.RemoveItem(r.Context(), userID(r), pid); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.Cart.Clear(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

type syncResponse struct {
	Cart        cart.Cart         `json:"cart"`
	Adjustments []cart.Adjustment `json:"adjustments"`
}

func (h *CartHandler) sync(w http.ResponseWriter, r *http.Request) {
	c, adj, err := h.Cart.Sync(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if adj == nil {
		adj = []cart.Adjustment{}
	}
	writeJSON(w, http.StatusOK, syncResponse{Cart: c, Adjustments: adj})
}
