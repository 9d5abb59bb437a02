package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-payment-notify/internal/config"
	"github.com/go-payment-notify/internal/domain"
	"github.com/go-payment-notify/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// PurposeCancelOrder is the only purpose the cancel endpoint accepts.
const PurposeCancelOrder = "cancel_order"

// Claims binds a cancel link to one order.
type Claims struct {
	OrderID  string `json:"order_id"`
	OrderKey string `json:"order_key"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 cancel-link tokens.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{privateKey: privKey, publicKey: pubKey, expiry: cfg.CancelTokenTTL}, nil
}

// SignCancel issues the nonce carried by a cancel-order URL.
func (p *Provider) SignCancel(orderID, orderKey string) (string, error) {
	now := time.Now()
	claims := Claims{
		OrderID:  orderID,
		OrderKey: orderKey,
		Purpose:  PurposeCancelOrder,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.At(now),
			Subject:   orderID,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

// VerifyCancel checks signature, expiry, purpose and that the token belongs to
// the given order. Every failure wraps domain.ErrForbidden.
func (p *Provider) VerifyCancel(tokenStr, orderID, orderKey string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancel token: %v: %w", err, domain.ErrForbidden)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrForbidden)
	}
	if claims.Purpose != PurposeCancelOrder || claims.OrderID != orderID || claims.OrderKey != orderKey {
		return nil, fmt.Errorf("cancel token does not match order %s: %w", orderID, domain.ErrForbidden)
	}
	return claims, nil
}
