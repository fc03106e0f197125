package order

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/common"
	"github.com/noah-isme/kasir-api/internal/obs"
)

// Handler wires the pricing engine to HTTP.
type Handler struct {
	Engine   *Engine
	Validate *validator.Validate
	Log      zerolog.Logger
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.RenderError(w, h.Log, err)
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, common.Validation("invalid " + name)
	}
	return id, nil
}

// Create opens a draft order against an open session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID  string  `json:"sessionId" validate:"required,uuid4"`
		CustomerID *string `json:"customerId" validate:"omitempty,uuid4"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}
	sessionID, _ := uuid.Parse(payload.SessionID)
	var customerID *uuid.UUID
	if payload.CustomerID != nil {
		cid, _ := uuid.Parse(*payload.CustomerID)
		customerID = &cid
	}
	sum, err := h.Engine.CreateOrder(r.Context(), sessionID, customerID)
	obs.CountOrderMutation("create", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, summaryPayload(sum))
}

// Get returns the order with its lines.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	sum, err := h.Engine.Get(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, summaryPayload(sum))
}

// AddItem adds or increments a product line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload struct {
		ProductID      string           `json:"productId" validate:"required,uuid4"`
		Qty            decimal.Decimal  `json:"qty"`
		ManualDiscount *decimal.Decimal `json:"manualDiscount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}
	productID, _ := uuid.Parse(payload.ProductID)
	sum, err := h.Engine.AddItem(r.Context(), orderID, productID, payload.Qty, payload.ManualDiscount)
	obs.CountOrderMutation("add_item", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, summaryPayload(sum))
}

// UpdateItemQuantity applies a signed quantity delta to a product line.
func (h *Handler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	productID, err := pathID(r, "productId")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload struct {
		Delta decimal.Decimal `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	sum, err := h.Engine.UpdateItemQuantity(r.Context(), orderID, productID, payload.Delta)
	obs.CountOrderMutation("update_item", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, summaryPayload(sum))
}

// RemoveItem deletes a line item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		h.writeError(w, err)
		return
	}
	sum, err := h.Engine.RemoveItem(r.Context(), orderID, itemID)
	obs.CountOrderMutation("remove_item", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, summaryPayload(sum))
}

// ApplyDiscount sets an explicit order-level discount.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload struct {
		Amount     *decimal.Decimal `json:"amount"`
		Percentage *decimal.Decimal `json:"percentage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	sum, err := h.Engine.ApplyDiscount(r.Context(), orderID, payload.Amount, payload.Percentage)
	obs.CountOrderMutation("apply_discount", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, summaryPayload(sum))
}

// Hold parks a draft order.
func (h *Handler) Hold(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.Hold, "hold")
}

// Retrieve brings a held order back to draft.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.Retrieve, "retrieve")
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) (Summary, error), name string) {
	orderID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	sum, err := op(r.Context(), orderID)
	obs.CountOrderMutation(name, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, summaryPayload(sum))
}

// Void deletes a draft or held order.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	err = h.Engine.Void(r.Context(), orderID)
	obs.CountOrderMutation("void", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func summaryPayload(s Summary) map[string]any {
	items := make([]map[string]any, 0, len(s.Items))
	for _, li := range s.Items {
		item := map[string]any{
			"id":             li.ID.String(),
			"productId":      li.ProductID.String(),
			"unitPrice":      li.UnitPrice,
			"qty":            li.Qty,
			"discount":       li.Discount,
			"manualDiscount": li.ManualDiscount,
			"taxAmount":      li.TaxAmount,
			"lineTotal":      li.LineTotal,
		}
		if li.AppliedOfferID != nil {
			item["appliedOfferId"] = li.AppliedOfferID.String()
		}
		items = append(items, item)
	}
	o := s.Order
	data := map[string]any{
		"id":             o.ID.String(),
		"sessionId":      o.SessionID.String(),
		"status":         o.Status,
		"subtotal":       o.Subtotal,
		"discountAmount": o.DiscountAmount,
		"manualDiscount": o.ManualDiscount,
		"taxAmount":      o.TaxAmount,
		"grandTotal":     o.GrandTotal,
		"items":          items,
		"createdAt":      o.CreatedAt,
		"updatedAt":      o.UpdatedAt,
	}
	if o.AppliedOfferID != nil {
		data["appliedOfferId"] = o.AppliedOfferID.String()
	}
	if o.ParentOrderID != nil {
		data["parentOrderId"] = o.ParentOrderID.String()
	}
	if o.CustomerID != nil {
		data["customerId"] = o.CustomerID.String()
	}
	if o.PaidAt != nil {
		data["paidAt"] = o.PaidAt
	}
	return map[string]any{"data": data}
}
