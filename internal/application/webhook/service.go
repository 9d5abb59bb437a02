package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-payment-notify/internal/application/payment"
	"github.com/go-payment-notify/internal/domain"
	"github.com/go-payment-notify/internal/infrastructure/metrics"
	s3infra "github.com/go-payment-notify/internal/infrastructure/s3"
	"github.com/go-payment-notify/internal/pkg/id"
)

const (
	defaultReceiptTTL = 30 * 24 * time.Hour
	finalizeRetryWait = 200 * time.Millisecond

	eventReconciled = "payment.reconciled"
	reviewNote      = "Payment notification needs manual review: "
	mailSubject     = "Your payment instructions"
)

// Request is one processor notification as received over HTTP.
type Request struct {
	Fields     map[string]string
	RemoteAddr string
}

// Result tells the transport what to answer the processor.
type Result struct {
	RedirectURL string
	OrderID     string
	Outcome     domain.ReconciliationOutcome
	// Duplicate is set when the notification was already handled and nothing was applied.
	Duplicate bool
}

type Service interface {
	Init(ctx context.Context, req Request) (*Result, error)
}

// OrderStore is the order access the webhook needs on top of what the reconciler writes.
type OrderStore interface {
	payment.OrderStore
	Get(ctx context.Context, orderID string) (*domain.Order, error)
}

type ReceiptStore interface {
	Claim(ctx context.Context, rc *domain.Receipt) (*domain.Receipt, error)
	Finalize(ctx context.Context, uniqueID, orderID, redirect string) error
	Release(ctx context.Context, uniqueID string) error
	Hold(ctx context.Context, uniqueID, reason string) error
}

type CartStore interface {
	Clear(ctx context.Context, cartID string) error
}

type Archive interface {
	Store(ctx context.Context, doc s3infra.ArchivedNotification) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev domain.OrderEvent) error
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

// Locker serializes notifications that share a unique id.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type TokenSigner interface {
	SignCancel(orderID, orderKey string) (string, error)
}

// ServiceDeps groups the collaborators of the webhook service. Archive, Publisher,
// Mailer and Metrics are optional.
type ServiceDeps struct {
	Verifier   *payment.Verifier
	Classifier *payment.Classifier
	Reconciler *payment.Reconciler

	Secret             string
	BypassVerification bool

	Orders    OrderStore
	Receipts  ReceiptStore
	Carts     CartStore
	Archive   Archive
	Publisher Publisher
	Mailer    Mailer
	Locker    Locker
	Tokens    TokenSigner
	URLs      URLBuilder
	Metrics   *metrics.Metrics

	ReceiptTTL time.Duration
}

type service struct {
	ServiceDeps
}

func NewService(deps ServiceDeps) Service {
	if deps.Verifier == nil {
		deps.Verifier = payment.NewVerifier(nil)
	}
	if deps.Classifier == nil {
		deps.Classifier = payment.NewClassifier()
	}
	if deps.ReceiptTTL == 0 {
		deps.ReceiptTTL = defaultReceiptTTL
	}
	return &service{ServiceDeps: deps}
}

// Init authenticates, classifies and applies one notification and returns the URL
// the processor must send the shopper to.
func (s *service) Init(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	defer func() { s.Metrics.ObserveHandleLatency(time.Since(started)) }()

	n := domain.NewNotification(req.Fields)

	if s.BypassVerification {
		slog.Warn("hash verification bypassed", "transaction_id", n.TransactionID())
	} else if err := s.Verifier.Verify(n, s.Secret, req.RemoteAddr); err != nil {
		slog.Warn("invalid response hash, suspecting manipulation",
			"remote_addr", req.RemoteAddr,
			"transaction_id", n.TransactionID(),
			"err", err,
		)
		s.Metrics.IncAuthFailure()
		s.Metrics.IncNotification("rejected", "")
		return nil, err
	}

	vn, err := s.Classifier.Classify(n)
	if err != nil {
		s.flagForReview(ctx, n, err)
		s.Metrics.IncNotification("rejected", "")
		return nil, err
	}

	key := receiptKey(vn)
	unlock, err := s.Locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock notification %s: %w", key, err)
	}
	defer unlock()

	now := time.Now().UTC()
	existing, err := s.Receipts.Claim(ctx, &domain.Receipt{
		UniqueID:  key,
		OrderID:   n.TransactionID(),
		State:     domain.ReceiptProcessing,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ReceiptTTL).Unix(),
	})
	if errors.Is(err, domain.ErrDuplicate) {
		return s.replay(key, existing)
	}
	if err != nil {
		return nil, fmt.Errorf("claim notification %s: %w", key, err)
	}

	res, err := s.apply(ctx, req, vn, key, now)
	if errors.Is(err, errClaimHeld) {
		return nil, err
	}
	if err != nil {
		if rerr := s.Receipts.Release(ctx, key); rerr != nil {
			slog.Error("could not release notification claim", "unique_id", key, "err", rerr)
		}
		return nil, err
	}
	return res, nil
}

// errClaimHeld marks an apply failure after the follow-up debit went out. The
// claim is kept so a redelivery cannot send the debit again.
var errClaimHeld = errors.New("notification held for manual review")

// apply runs everything after the receipt was claimed. Any error releases the claim.
func (s *service) apply(ctx context.Context, req Request, vn domain.VerifiedNotification, key string, receivedAt time.Time) (*Result, error) {
	o, err := s.Orders.Get(ctx, vn.Notification.TransactionID())
	if err != nil {
		return nil, err
	}

	if s.Archive != nil {
		loc, err := s.Archive.Store(ctx, s3infra.ArchivedNotification{
			OrderID:    o.OrderID,
			UniqueID:   key,
			RemoteAddr: req.RemoteAddr,
			ReceivedAt: receivedAt,
			Fields:     vn.Notification.Fields(),
		})
		if err != nil {
			slog.Warn("could not archive notification", "order_id", o.OrderID, "unique_id", key, "err", err)
		} else {
			slog.Debug("archived notification", "order_id", o.OrderID, "location", loc)
		}
	}

	outcome, err := s.Reconciler.Reconcile(ctx, o, vn)
	if err != nil {
		err = fmt.Errorf("reconcile order %s: %w", o.OrderID, err)
		if vn.Code.IsRegistration() && payment.FollowUpSent(o, vn) {
			s.hold(ctx, o, key, err)
			return nil, errors.Join(err, errClaimHeld)
		}
		return nil, err
	}

	redirect, err := s.render(ctx, o, outcome)
	if err != nil {
		return nil, err
	}

	s.finalize(ctx, key, o.OrderID, redirect)
	s.publish(ctx, o, vn, key, redirect)
	s.mailInstructions(o, vn, outcome)
	s.Metrics.IncNotification(string(vn.Result), string(vn.Code.Method))

	slog.Info("notification reconciled",
		"order_id", o.OrderID,
		"unique_id", key,
		"payment_code", vn.Code.String(),
		"result", string(vn.Result),
		"status", string(o.Status),
		"redirect", string(outcome.Kind),
	)
	return &Result{RedirectURL: redirect, OrderID: o.OrderID, Outcome: outcome}, nil
}

func (s *service) render(ctx context.Context, o *domain.Order, outcome domain.ReconciliationOutcome) (string, error) {
	switch outcome.Kind {
	case domain.RedirectToCancel:
		token, err := s.Tokens.SignCancel(o.OrderID, o.OrderKey)
		if err != nil {
			return "", fmt.Errorf("sign cancel token: %w", err)
		}
		return s.URLs.Cancel(o, token, outcome.ErrorCode), nil
	case domain.RedirectToReceivedAfterCartClear:
		if o.CartID != "" {
			if err := s.Carts.Clear(ctx, o.CartID); err != nil {
				slog.Warn("could not clear cart", "order_id", o.OrderID, "cart_id", o.CartID, "err", err)
			}
		}
		return s.URLs.Received(o), nil
	default:
		return s.URLs.Received(o), nil
	}
}

// finalize records the redirect on the receipt, retrying once. A receipt left in
// processing makes every redelivery answer 409 until it expires.
func (s *service) finalize(ctx context.Context, key, orderID, redirect string) {
	err := s.Receipts.Finalize(ctx, key, orderID, redirect)
	if err == nil {
		return
	}
	slog.Warn("could not finalize notification receipt, retrying", "unique_id", key, "order_id", orderID, "err", err)
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(finalizeRetryWait):
		err = s.Receipts.Finalize(ctx, key, orderID, redirect)
	}
	if err != nil {
		slog.Error("could not finalize notification receipt", "unique_id", key, "order_id", orderID, "err", err)
	}
}

// hold keeps the claim and flags the order after a failure that followed the
// follow-up debit. Both writes are best effort: the claim is never released.
func (s *service) hold(ctx context.Context, o *domain.Order, key string, cause error) {
	slog.Error("follow-up debit sent but order update failed, holding notification for review",
		"order_id", o.OrderID, "unique_id", key, "err", cause)
	if err := s.Receipts.Hold(ctx, key, cause.Error()); err != nil {
		slog.Error("could not mark notification receipt for review", "unique_id", key, "err", err)
	}
	if err := s.Orders.AddNote(ctx, o, reviewNote+cause.Error()); err != nil {
		slog.Warn("could not add review note", "order_id", o.OrderID, "err", err)
		return
	}
	if err := s.Orders.AddMeta(ctx, o, domain.MetaReviewRequired, cause.Error()); err != nil {
		slog.Warn("could not flag order for review", "order_id", o.OrderID, "err", err)
	}
}

// replay answers a redelivered notification from its receipt.
func (s *service) replay(key string, rc *domain.Receipt) (*Result, error) {
	if rc != nil && rc.State == domain.ReceiptReview {
		return nil, fmt.Errorf("notification %s: %w", key, errors.Join(errClaimHeld, domain.ErrConflict))
	}
	if rc == nil || rc.State != domain.ReceiptDone {
		return nil, fmt.Errorf("notification %s is still being processed: %w", key, domain.ErrConflict)
	}
	slog.Info("duplicate notification", "unique_id", key, "order_id", rc.OrderID)
	s.Metrics.IncNotification("duplicate", "")
	return &Result{RedirectURL: rc.Redirect, OrderID: rc.OrderID, Duplicate: true}, nil
}

// flagForReview leaves a trace on the order when a notification cannot be classified.
// The order status is never touched.
func (s *service) flagForReview(ctx context.Context, n domain.Notification, cause error) {
	txnID := n.TransactionID()
	slog.Warn("unclassifiable notification", "transaction_id", txnID, "err", cause)
	if txnID == "" || n.Ambiguous(domain.FieldTransactionID) {
		return
	}
	o, err := s.Orders.Get(ctx, txnID)
	if err != nil {
		slog.Warn("no order to flag for review", "transaction_id", txnID, "err", err)
		return
	}
	if err := s.Orders.AddNote(ctx, o, reviewNote+cause.Error()); err != nil {
		slog.Warn("could not add review note", "order_id", o.OrderID, "err", err)
		return
	}
	if err := s.Orders.AddMeta(ctx, o, domain.MetaReviewRequired, cause.Error()); err != nil {
		slog.Warn("could not flag order for review", "order_id", o.OrderID, "err", err)
	}
}

func (s *service) publish(ctx context.Context, o *domain.Order, vn domain.VerifiedNotification, key, redirect string) {
	if s.Publisher == nil {
		return
	}
	now := time.Now().UTC()
	ev := domain.OrderEvent{
		EventID:     id.At(now),
		Type:        eventReconciled,
		OrderID:     o.OrderID,
		Status:      o.Status,
		PaymentCode: vn.Code.String(),
		UniqueID:    key,
		Redirect:    redirect,
		OccurredAt:  now,
	}
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		slog.Warn("could not publish order event", "order_id", o.OrderID, "err", err)
	}
}

func (s *service) mailInstructions(o *domain.Order, vn domain.VerifiedNotification, outcome domain.ReconciliationOutcome) {
	if s.Mailer == nil || o.BillingEmail == "" || outcome.Kind != domain.RedirectToReceived {
		return
	}
	info := o.Meta(domain.MetaPaymentInfo)
	if info == "" || !vn.IsSuccess() {
		return
	}
	if err := s.Mailer.SendEmail(o.BillingEmail, mailSubject, info); err != nil {
		slog.Warn("could not email payment instructions", "order_id", o.OrderID, "err", err)
	}
}

// receiptKey is the processor's unique id, or a stand-in built from the
// transaction id and payment code when the processor sent none.
func receiptKey(vn domain.VerifiedNotification) string {
	if uid := vn.Notification.UniqueID(); uid != "" {
		return uid
	}
	return "txn:" + vn.Notification.TransactionID() + ":" + vn.Code.String()
}
