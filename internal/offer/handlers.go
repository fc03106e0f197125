package offer

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/common"
)

// Handler exposes the offer administration surface.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Log      zerolog.Logger
}

type createPayload struct {
	Code           string          `json:"code" validate:"required"`
	Type           Type            `json:"type" validate:"required"`
	Kind           DiscountKind    `json:"kind" validate:"required"`
	Value          decimal.Decimal `json:"value"`
	StartAt        *time.Time      `json:"startAt"`
	EndAt          *time.Time      `json:"endAt"`
	ProductIDs     []string        `json:"productIds" validate:"omitempty,dive,uuid4"`
	CategoryIDs    []string        `json:"categoryIds" validate:"omitempty,dive,uuid4"`
	MinOrderAmount decimal.Decimal `json:"minOrderAmount"`
	BundleItems    []struct {
		ProductID   string          `json:"productId" validate:"required,uuid4"`
		RequiredQty decimal.Decimal `json:"requiredQty"`
	} `json:"bundleItems" validate:"omitempty,dive"`
}

// Create registers a new offer.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}
	o := Offer{
		Code:           payload.Code,
		Type:           payload.Type,
		Kind:           payload.Kind,
		Value:          payload.Value,
		MinOrderAmount: payload.MinOrderAmount,
	}
	if payload.StartAt != nil {
		o.StartAt = *payload.StartAt
	}
	if payload.EndAt != nil {
		o.EndAt = *payload.EndAt
	}
	for _, s := range payload.ProductIDs {
		id, _ := uuid.Parse(s)
		o.ProductIDs = append(o.ProductIDs, id)
	}
	for _, s := range payload.CategoryIDs {
		id, _ := uuid.Parse(s)
		o.CategoryIDs = append(o.CategoryIDs, id)
	}
	for _, bi := range payload.BundleItems {
		id, _ := uuid.Parse(bi.ProductID)
		o.BundleItems = append(o.BundleItems, BundleItem{ProductID: id, RequiredQty: bi.RequiredQty})
	}

	created, err := h.Svc.Create(r.Context(), o)
	if err != nil {
		common.RenderError(w, h.Log, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": payloadFor(created)})
}

// List returns every offer.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	offers, err := h.Svc.List(r.Context())
	if err != nil {
		common.RenderError(w, h.Log, err)
		return
	}
	out := make([]map[string]any, 0, len(offers))
	for _, o := range offers {
		out = append(out, payloadFor(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Deactivate turns an offer off.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid offer id", nil)
		return
	}
	o, err := h.Svc.Deactivate(r.Context(), id)
	if err != nil {
		common.RenderError(w, h.Log, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payloadFor(o)})
}

func payloadFor(o Offer) map[string]any {
	out := map[string]any{
		"id":     o.ID.String(),
		"code":   o.Code,
		"type":   o.Type,
		"kind":   o.Kind,
		"value":  o.Value,
		"active": o.Active,
	}
	if !o.StartAt.IsZero() {
		out["startAt"] = o.StartAt
	}
	if !o.EndAt.IsZero() {
		out["endAt"] = o.EndAt
	}
	switch o.Type {
	case TypeProduct:
		ids := make([]string, 0, len(o.ProductIDs))
		for _, id := range o.ProductIDs {
			ids = append(ids, id.String())
		}
		out["productIds"] = ids
	case TypeCategory:
		ids := make([]string, 0, len(o.CategoryIDs))
		for _, id := range o.CategoryIDs {
			ids = append(ids, id.String())
		}
		out["categoryIds"] = ids
	case TypeOrder:
		out["minOrderAmount"] = o.MinOrderAmount
	case TypeBundle:
		items := make([]map[string]any, 0, len(o.BundleItems))
		for _, bi := range o.BundleItems {
			items = append(items, map[string]any{
				"productId":   bi.ProductID.String(),
				"requiredQty": bi.RequiredQty,
			})
		}
		out["bundleItems"] = items
	}
	return out
}
