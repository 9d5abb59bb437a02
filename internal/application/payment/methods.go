package payment

import (
	"context"
	"fmt"

	"github.com/go-payment-notify/internal/domain"
)

// Sender is the network collaborator that talks to the processor.
type Sender interface {
	Send(ctx context.Context, url string, payload map[string]string) (raw string, resp domain.Notification, err error)
}

// FollowUpTransactionRequest is the debit sent right after a successful registration.
// It is built, sent and dropped; nothing stores it.
type FollowUpTransactionRequest struct {
	OrderID         string `validate:"required"`
	Code            string `validate:"required,paymentcode"`
	ReferenceID     string `validate:"required"`
	Channel         string
	Amount          string `validate:"required"`
	Currency        string `validate:"required,len=3"`
	FrontendEnabled string `validate:"flag"`
}

// Payload renders the request in the processor's dotted field layout.
func (r FollowUpTransactionRequest) Payload() map[string]string {
	p := map[string]string{
		"PAYMENT.CODE":                 r.Code,
		"IDENTIFICATION.TRANSACTIONID": r.OrderID,
		"IDENTIFICATION.REFERENCEID":   r.ReferenceID,
		"PRESENTATION.AMOUNT":          r.Amount,
		"PRESENTATION.CURRENCY":        r.Currency,
		"FRONTEND.ENABLED":             r.FrontendEnabled,
	}
	if r.Channel != "" {
		p["TRANSACTION.CHANNEL"] = r.Channel
	}
	return p
}

// MethodHandler builds processor requests for one payment method.
type MethodHandler struct {
	Method  domain.Method
	Channel string
	// Registers reports whether the method can register an account and be
	// debited against it later.
	Registers bool
}

// DebitOnRegistration builds the follow-up debit for a registration notification.
// The unique id of the registration becomes the reference id and the frontend is off.
func (h MethodHandler) DebitOnRegistration(o *domain.Order, vn domain.VerifiedNotification) FollowUpTransactionRequest {
	amount, currency := vn.Notification.Amount(), vn.Notification.Currency()
	if amount == "" {
		amount = o.Total
	}
	if currency == "" {
		currency = o.Currency
	}
	return FollowUpTransactionRequest{
		OrderID:         o.OrderID,
		Code:            string(h.Method) + "." + string(domain.PhaseDebit),
		ReferenceID:     vn.Notification.UniqueID(),
		Channel:         h.Channel,
		Amount:          amount,
		Currency:        currency,
		FrontendEnabled: "FALSE",
	}
}

// Registry maps method codes to their handlers. It is a closed table: every entry
// is one of domain.Methods.
type Registry struct {
	handlers map[domain.Method]MethodHandler
}

// registering lists the methods that support account registration.
var registering = map[domain.Method]bool{
	domain.MethodCreditCard:     true,
	domain.MethodDebitCard:      true,
	domain.MethodDirectDebit:    true,
	domain.MethodVirtualAccount: true,
}

// NewRegistry builds one handler per known method. channels maps method codes
// ("CC", "DD", ...) to the processor transaction channel.
func NewRegistry(channels map[string]string) *Registry {
	r := &Registry{handlers: make(map[domain.Method]MethodHandler, len(domain.Methods))}
	for _, m := range domain.Methods {
		r.handlers[m] = MethodHandler{Method: m, Channel: channels[string(m)], Registers: registering[m]}
	}
	return r
}

// Lookup returns the handler for m or an error wrapping domain.ErrUnsupportedMethod.
func (r *Registry) Lookup(m domain.Method) (MethodHandler, error) {
	h, ok := r.handlers[m]
	if !ok {
		return MethodHandler{}, fmt.Errorf("method %q: %w", m, domain.ErrUnsupportedMethod)
	}
	return h, nil
}

// LookupRegistering is Lookup restricted to methods that can be debited on a registration.
func (r *Registry) LookupRegistering(m domain.Method) (MethodHandler, error) {
	h, err := r.Lookup(m)
	if err != nil {
		return MethodHandler{}, err
	}
	if !h.Registers {
		return MethodHandler{}, fmt.Errorf("method %q cannot debit on registration: %w", m, domain.ErrUnsupportedMethod)
	}
	return h, nil
}
