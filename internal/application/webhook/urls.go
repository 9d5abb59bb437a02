package webhook

import (
	"fmt"
	"net/url"

	"github.com/go-payment-notify/internal/domain"
)

// URLBuilder renders the storefront and cancel URLs handed back to the processor.
type URLBuilder struct {
	shopBase   string
	publicBase string
}

func NewURLBuilder(shopBase, publicBase string) URLBuilder {
	return URLBuilder{shopBase: shopBase, publicBase: publicBase}
}

// Received is the order-received (thank-you) page.
func (b URLBuilder) Received(o *domain.Order) string {
	return fmt.Sprintf("%s/checkout/order-received/%s/?key=%s", b.shopBase, url.PathEscape(o.OrderID), url.QueryEscape(o.OrderKey))
}

// Cancel is this service's cancel endpoint, carrying the order key, a signed
// replay token and the processor's error code.
func (b URLBuilder) Cancel(o *domain.Order, token, errorCode string) string {
	q := url.Values{}
	q.Set("key", o.OrderKey)
	q.Set("token", token)
	q.Set("errorCode", errorCode)
	return fmt.Sprintf("%s/v1/orders/%s/cancel?%s", b.publicBase, url.PathEscape(o.OrderID), q.Encode())
}

// Cart is where the shopper lands after a cancellation.
func (b URLBuilder) Cart(errorCode string) string {
	q := url.Values{}
	q.Set("cancel_order", "true")
	if errorCode != "" {
		q.Set("errorCode", errorCode)
	}
	return fmt.Sprintf("%s/cart/?%s", b.shopBase, q.Encode())
}
