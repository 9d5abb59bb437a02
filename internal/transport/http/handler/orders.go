package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-payment-notify/internal/application/order"
)

// CartURLFunc builds the storefront URL a cancelled shopper is sent back to.
type CartURLFunc func(errorCode string) string

// OrderHandler serves the shopper-facing order links.
type OrderHandler struct {
	svc     order.Service
	cartURL CartURLFunc
}

func NewOrderHandler(svc order.Service, cartURL CartURLFunc) *OrderHandler {
	return &OrderHandler{svc: svc, cartURL: cartURL}
}

// Cancel handles the cancel link issued after a failed payment and sends the
// shopper back to the cart.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	errorCode := q.Get("errorCode")
	_, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "id"), q.Get("key"), q.Get("token"), errorCode)
	if err != nil {
		httpError(w, err)
		return
	}
	http.Redirect(w, r, h.cartURL(errorCode), http.StatusSeeOther)
}

func (h *OrderHandler) PaymentInfo(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	info, err := h.svc.PaymentInfo(r.Context(), orderID, r.URL.Query().Get("key"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentInfoEnvelope{OrderID: orderID, PaymentInfo: info})
}
