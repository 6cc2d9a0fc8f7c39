package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/store"
)

// Queries lists the store operations the catalogue reads from.
type Queries interface {
	ListProducts(ctx context.Context, limit, offset int32) ([]store.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (store.Product, error)
}

// Handler serves the public product catalogue.
type Handler struct {
	Q Queries
}

// List returns active products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 24)
	products, err := h.Q.ListProducts(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	out := make([]map[string]any, 0, len(products))
	for _, p := range products {
		out = append(out, present(p))
	}
	common.JSONData(w, http.StatusOK, out)
}

// Get returns one product by slug.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	product, err := h.Q.GetProductBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusOK, present(product))
}

func present(p store.Product) map[string]any {
	return map[string]any{
		"id":          p.ID.String(),
		"slug":        p.Slug,
		"title":       p.Title,
		"description": p.Description,
		"price":       p.Price,
	}
}
