package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-payment-notify/internal/application/webhook"
	"github.com/go-payment-notify/internal/domain"
	"github.com/go-payment-notify/internal/transport/http/middleware"
)

// maxNotificationBytes caps the form body the processor may post.
const maxNotificationBytes = 64 << 10

// NotificationHandler receives the processor's asynchronous result posts.
type NotificationHandler struct {
	svc webhook.Service
}

func NewNotificationHandler(svc webhook.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// Receive answers with the redirect URL as plain text; the processor forwards
// the shopper there. Authentication failures get an empty 403.
func (h *NotificationHandler) Receive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNotificationBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	fields := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		fields[k] = r.PostForm.Get(k)
	}

	res, err := h.svc.Init(r.Context(), webhook.Request{Fields: fields, RemoteAddr: middleware.RealIP(r)})
	if err != nil {
		var authErr *domain.AuthenticationError
		if errors.As(err, &authErr) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		httpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, res.RedirectURL)
}
