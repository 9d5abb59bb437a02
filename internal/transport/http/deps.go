package http

import (
	"github.com/go-payment-notify/internal/application/order"
	"github.com/go-payment-notify/internal/application/webhook"
	"github.com/go-payment-notify/internal/transport/http/handler"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps holds the wired services the router exposes.
type Deps struct {
	Webhook webhook.Service
	Orders  order.Service
	URLs    webhook.URLBuilder

	// Health lists the backing services checked by /health-check/ready.
	Health map[string]handler.Pinger
	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}
