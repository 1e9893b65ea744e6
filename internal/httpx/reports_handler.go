package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-consistency/internal/catalog"
	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/logging"
	"github.com/ariefcatur/go-shop-consistency/internal/orders"
	"github.com/ariefcatur/go-shop-consistency/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

const maxReportLimit = 100

type ReportsHandler struct {
	Orders  *orders.Service
	Catalog *catalog.Service
	Redis   *redis.Client
	TTL     time.Duration // 0 means redisx.TTLBestSellers
}

func (h *ReportsHandler) Register(r chi.Router) {
	r.Get("/reports/best-sellers", h.bestSellers)
}

type bestSellerRow struct {
	domain.ProductSales
	Name        string `json:"name"`
	Purchasable bool   `json:"purchasable"`
}

func (h *ReportsHandler) bestSellers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxReportLimit {
			writeError(w, r, &domain.ValidationError{Field: "limit", Reason: fmt.Sprintf("must be between 0 and %d", maxReportLimit)})
			return
		}
		limit = n
	}
	if limit == 0 {
		limit = orders.DefaultBestSellers
	}

	key := fmt.Sprintf(redisx.KeyBestSellers, limit)
	if h.Redis != nil {
		var cached []bestSellerRow
		if found, err := redisx.GetJSON(ctx, h.Redis, key, &cached); err == nil && found {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	sales, err := h.Orders.BestSellers(ctx, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows := make([]bestSellerRow, 0, len(sales))
	for _, s := range sales {
		row := bestSellerRow{ProductSales: s}
		p, err := h.Catalog.GetProduct(ctx, s.ProductID)
		switch {
		case err == nil:
			row.Name, row.Purchasable = p.Name, p.Purchasable()
		case !errors.Is(err, domain.ErrNotFound):
			writeError(w, r, err)
			return
		}
		rows = append(rows, row)
	}

	if h.Redis != nil {
		ttl := h.TTL
		if ttl <= 0 {
			ttl = redisx.TTLBestSellers
		}
		if err := redisx.SetJSON(ctx, h.Redis, key, rows, ttl); err != nil {
			logging.Warn(ctx, "best sellers cache write failed", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, rows)
}
