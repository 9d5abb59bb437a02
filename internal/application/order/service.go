package order

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/go-payment-notify/internal/domain"
	jwtinfra "github.com/go-payment-notify/internal/infrastructure/jwt"
)

type Service interface {
	Cancel(ctx context.Context, orderID, orderKey, token, errorCode string) (*domain.Order, error)
	PaymentInfo(ctx context.Context, orderID, orderKey string) (string, error)
}

type Store interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, o *domain.Order, status domain.OrderStatus, note string) error
}

type TokenVerifier interface {
	VerifyCancel(token, orderID, orderKey string) (*jwtinfra.Claims, error)
}

type service struct {
	repo   Store
	tokens TokenVerifier
}

func NewService(repo Store, tokens TokenVerifier) Service {
	return &service{repo: repo, tokens: tokens}
}

// Cancel is the target of the cancel link handed out after a failed payment.
// Cancelling an already cancelled order is a no-op.
func (s *service) Cancel(ctx context.Context, orderID, orderKey, token, errorCode string) (*domain.Order, error) {
	if _, err := s.tokens.VerifyCancel(token, orderID, orderKey); err != nil {
		return nil, err
	}
	o, err := s.load(ctx, orderID, orderKey)
	if err != nil {
		return nil, err
	}
	if o.Status == domain.OrderCancelled {
		return o, nil
	}
	if !o.Cancellable() {
		return nil, fmt.Errorf("order %s is %s: %w", orderID, o.Status, domain.ErrConflict)
	}
	note := "Order cancelled by the shopper."
	if errorCode != "" {
		note = fmt.Sprintf("Order cancelled by the shopper after payment error %s.", errorCode)
	}
	if err := s.repo.UpdateStatus(ctx, o, domain.OrderCancelled, note); err != nil {
		return nil, err
	}
	return o, nil
}

// PaymentInfo returns the settlement instructions recorded for the order.
func (s *service) PaymentInfo(ctx context.Context, orderID, orderKey string) (string, error) {
	o, err := s.load(ctx, orderID, orderKey)
	if err != nil {
		return "", err
	}
	info := o.Meta(domain.MetaPaymentInfo)
	if info == "" {
		return "", fmt.Errorf("payment info for order %s: %w", orderID, domain.ErrNotFound)
	}
	return info, nil
}

// load fetches the order and hides it unless the caller knows its key.
func (s *service) load(ctx context.Context, orderID, orderKey string) (*domain.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if orderKey == "" || subtle.ConstantTimeCompare([]byte(o.OrderKey), []byte(orderKey)) != 1 {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return o, nil
}
