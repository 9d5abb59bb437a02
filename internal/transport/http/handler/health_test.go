package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Health(ctx context.Context) error { return f(ctx) }

func healthRouter(deps map[string]Pinger) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/health-check/{action}", NewHealthHandler(deps).Ping)
	return r
}

func TestHealth(t *testing.T) {
	ok := healthRouter(map[string]Pinger{"redis": pingerFunc(func(context.Context) error { return nil }), "none": nil})
	down := healthRouter(map[string]Pinger{"redis": pingerFunc(func(context.Context) error { return errors.New("refused") })})

	cases := []struct {
		h    http.Handler
		path string
		want int
	}{
		{ok, "/v1/health-check/ping", http.StatusOK},
		{ok, "/v1/health-check/ready", http.StatusOK},
		{down, "/v1/health-check/ready", http.StatusServiceUnavailable},
		{ok, "/v1/health-check/other", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		tc.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, tc.path)
	}
}
