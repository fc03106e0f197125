package session

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir-api/internal/common"
)

// Handler wires session lifecycle to HTTP.
type Handler struct {
	Svc *Service
	Log zerolog.Logger
}

// Open starts a register session.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Terminal string `json:"terminal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	terminal := strings.TrimSpace(payload.Terminal)
	if terminal == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "terminal is required", nil)
		return
	}
	sess, err := h.Svc.Open(r.Context(), terminal)
	if err != nil {
		common.RenderError(w, h.Log, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": payloadFor(sess)})
}

// Close ends a register session.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid session id", nil)
		return
	}
	sess, err := h.Svc.Close(r.Context(), id)
	if err != nil {
		common.RenderError(w, h.Log, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payloadFor(sess)})
}

func payloadFor(sess Session) map[string]any {
	out := map[string]any{
		"id":       sess.ID.String(),
		"terminal": sess.Terminal,
		"status":   sess.Status,
		"openedAt": sess.OpenedAt,
	}
	if sess.ClosedAt != nil {
		out["closedAt"] = sess.ClosedAt
	}
	return out
}
