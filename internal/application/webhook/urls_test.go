package webhook

import (
	"net/url"
	"testing"

	"github.com/go-payment-notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLBuilder(t *testing.T) {
	b := NewURLBuilder("https://shop.example", "https://pay.example")
	o := &domain.Order{OrderID: "10 42", OrderKey: "wc_order_a&b"}

	assert.Equal(t, "https://shop.example/checkout/order-received/10%2042/?key=wc_order_a%26b", b.Received(o))

	u, err := url.Parse(b.Cancel(o, "tok", "100.100.101"))
	require.NoError(t, err)
	assert.Equal(t, "pay.example", u.Host)
	assert.Equal(t, "/v1/orders/10 42/cancel", u.Path)
	assert.Equal(t, "wc_order_a&b", u.Query().Get("key"))
	assert.Equal(t, "tok", u.Query().Get("token"))
	assert.Equal(t, "100.100.101", u.Query().Get("errorCode"))

	assert.Equal(t, "https://shop.example/cart/?cancel_order=true&errorCode=001", b.Cart("001"))
	assert.Equal(t, "https://shop.example/cart/?cancel_order=true", b.Cart(""))
}
