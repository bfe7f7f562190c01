package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/service"
)

// OrderHandler serves the pub order board.
type OrderHandler struct {
	orders  *service.OrderService
	authSvc *service.AuthService
	logger  *slog.Logger
}

func NewOrderHandler(orders *service.OrderService, authSvc *service.AuthService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, authSvc: authSvc, logger: logger}
}

// HandleMenu returns the fixed drink and food menus.
//
// HTTP: GET /api/orders/menu
func (h *OrderHandler) HandleMenu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orders.Menu())
}

// HandleList returns every active order, oldest first.
//
// HTTP: GET /api/orders (auth required)
func (h *OrderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// HandleSubmit places the member's order.
//
// HTTP: POST /api/orders (auth required)
// Body: {"drink":"Beer 0.5L","foodCategory":"Burgers","foodItem":"...","foodOrder":"...","specialRequest":"..."}
//
// The owner fields come from the session's stored profile, never from
// the body.
func (h *OrderHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	profile, err := callerProfile(r, h.authSvc)
	if err != nil {
		writeError(w, err)
		return
	}

	var order model.Order
	if err := decodeJSON(r, &order); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.orders.Submit(r.Context(), profile, &order)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleRemove deletes the member's own order.
//
// HTTP: DELETE /api/orders/{id} (auth required)
func (h *OrderHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	profile, err := callerProfile(r, h.authSvc)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.orders.Remove(r.Context(), r.PathValue("id"), profile.UID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearAll wipes the whole board after checking the shared secret.
//
// HTTP: POST /api/orders/clear (auth required)
// Body: {"secret":"..."}
func (h *OrderHandler) HandleClearAll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Secret string `json:"secret"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.orders.ClearAll(r.Context(), body.Secret); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "orders cleared"})
}

// HandleExport returns the board as the plain-text summary the person
// walking to the bar reads off their phone.
//
// HTTP: GET /api/orders/export (auth required)
func (h *OrderHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	text, err := h.orders.ExportText(r.Context(), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		h.logger.Error("writing order export", slog.String("error", err.Error()))
	}
}
