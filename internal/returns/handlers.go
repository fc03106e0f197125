package returns

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/common"
	"github.com/noah-isme/kasir-api/internal/obs"
	"github.com/noah-isme/kasir-api/internal/payment"
)

// Handler wires return creation to HTTP.
type Handler struct {
	Engine   *Engine
	Validate *validator.Validate
	Log      zerolog.Logger
}

type createPayload struct {
	OriginalOrderID string `json:"originalOrderId" validate:"required,uuid4"`
	SessionID       string `json:"sessionId" validate:"required,uuid4"`
	Items           []struct {
		OriginalLineItemID string          `json:"originalLineItemId" validate:"required,uuid4"`
		ReturnedQty        decimal.Decimal `json:"returnedQty"`
	} `json:"items" validate:"required,min=1,dive"`
	Refunds []struct {
		Method payment.Method  `json:"method"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"refunds" validate:"required,min=1,dive"`
}

// Create processes a return against a paid order.
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
	req := Request{}
	req.OriginalOrderID, _ = uuid.Parse(payload.OriginalOrderID)
	req.SessionID, _ = uuid.Parse(payload.SessionID)
	for _, it := range payload.Items {
		itemID, _ := uuid.Parse(it.OriginalLineItemID)
		req.Items = append(req.Items, ItemRequest{OriginalItemID: itemID, ReturnedQty: it.ReturnedQty})
	}
	for _, rf := range payload.Refunds {
		req.Refunds = append(req.Refunds, Refund{Method: rf.Method, Amount: rf.Amount})
	}

	res, err := h.Engine.Create(r.Context(), req)
	obs.CountReturn(err)
	if err != nil {
		common.RenderError(w, h.Log, err)
		return
	}

	items := make([]map[string]any, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, map[string]any{
			"originalLineItemId": it.OriginalItemID.String(),
			"returnedQty":        it.ReturnedQty,
			"refundAmount":       it.RefundAmount,
		})
	}
	refunds := make([]map[string]any, 0, len(res.Refunds))
	for _, rf := range res.Refunds {
		refunds = append(refunds, map[string]any{"method": rf.Method, "amount": rf.Amount})
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"returnOrderId": res.ReturnOrderID.String(),
			"totalRefund":   res.TotalRefund,
			"items":         items,
			"refunds":       refunds,
		},
	})
}
