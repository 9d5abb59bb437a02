package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-payment-notify/internal/application/webhook"
	"github.com/go-payment-notify/internal/config"
	"github.com/go-payment-notify/internal/domain"
	"github.com/go-payment-notify/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stubs ---

type stubWebhook struct{ url string }

func (s stubWebhook) Init(ctx context.Context, req webhook.Request) (*webhook.Result, error) {
	return &webhook.Result{RedirectURL: s.url}, nil
}

type stubOrders struct{}

func (stubOrders) Cancel(ctx context.Context, orderID, orderKey, token, errorCode string) (*domain.Order, error) {
	return &domain.Order{OrderID: orderID, Status: domain.OrderCancelled}, nil
}

func (stubOrders) PaymentInfo(ctx context.Context, orderID, orderKey string) (string, error) {
	return "", domain.ErrNotFound
}

// --- helpers ---

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncNotification("success", "CC")
	return NewRouter(&config.Config{AllowedOrigins: []string{"*"}}, &Deps{
		Webhook:  stubWebhook{url: "https://shop.example/checkout/order-received/7/?key=k"},
		Orders:   stubOrders{},
		URLs:     webhook.NewURLBuilder("https://shop.example", "https://pay.example"),
		Gatherer: reg,
	})
}

// --- tests ---

func TestRouter_Notification(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/notifications", strings.NewReader("IDENTIFICATION.TRANSACTIONID=7"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://shop.example/checkout/order-received/7/?key=k", rec.Body.String())
}

func TestRouter_CancelRedirectsToCart(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders/7/cancel?key=k&token=t&errorCode=800.100.152", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://shop.example/cart/?cancel_order=true&errorCode=800.100.152", rec.Header().Get("Location"))
}

func TestRouter_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment_notifications_total")
}

func TestRouter_NotificationRejectsGet(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/notifications", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
