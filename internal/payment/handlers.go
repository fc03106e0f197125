package payment

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/common"
	"github.com/noah-isme/kasir-api/internal/obs"
)

// Handler wires payment processing to HTTP.
type Handler struct {
	Svc *Service
	Log zerolog.Logger
}

// Process records the sale payment for an order and marks it PAID.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid order id", nil)
		return
	}
	var payload struct {
		Method     Method          `json:"method"`
		Amount     decimal.Decimal `json:"amount"`
		CashAmount decimal.Decimal `json:"cashAmount"`
		CardAmount decimal.Decimal `json:"cardAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	o, err := h.Svc.Process(r.Context(), orderID, Request{
		Method:     payload.Method,
		Amount:     payload.Amount,
		CashAmount: payload.CashAmount,
		CardAmount: payload.CardAmount,
	})
	if err != nil {
		common.RenderError(w, h.Log, err)
		return
	}
	obs.CountPayment(string(KindSale), string(payload.Method))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"orderId":    o.ID.String(),
			"status":     o.Status,
			"grandTotal": o.GrandTotal,
			"paidAt":     o.PaidAt,
		},
	})
}
