package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir-api/internal/common"
)

// Handler exposes the product read surface used by the register UI.
type Handler struct {
	Store Store
	Log   zerolog.Logger
}

// List returns active products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context(), true)
	if err != nil {
		common.RenderError(w, h.Log, err)
		return
	}
	out := make([]map[string]any, 0, len(products))
	for _, p := range products {
		out = append(out, payloadFor(p))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Get returns one product.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid product id", nil)
		return
	}
	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		common.RenderError(w, h.Log, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payloadFor(p)})
}

func payloadFor(p Product) map[string]any {
	categories := make([]string, 0, len(p.CategoryIDs))
	for _, cid := range p.CategoryIDs {
		categories = append(categories, cid.String())
	}
	return map[string]any{
		"id":          p.ID.String(),
		"sku":         p.SKU,
		"name":        p.Name,
		"unitPrice":   p.UnitPrice,
		"active":      p.Active,
		"categoryIds": categories,
	}
}
