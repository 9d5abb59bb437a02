package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-payment-notify/internal/domain"
	"github.com/go-payment-notify/internal/pkg/validate"
)

// FollowUpPolicy says what a failed registration follow-up does to the order.
type FollowUpPolicy string

const (
	// FollowUpWarn keeps the successful registration and records a warning on the order.
	FollowUpWarn FollowUpPolicy = "warn"
	// FollowUpFail fails the order and sends the shopper to the cancel page.
	FollowUpFail FollowUpPolicy = "fail"
)

// followUpTransportCode is the cancel error code used when the processor never answered.
const followUpTransportCode = "followup"

// OrderStore is the slice of the shop's order engine the reconciler writes to.
// Implementations persist the change and then apply it to o.
type OrderStore interface {
	UpdateStatus(ctx context.Context, o *domain.Order, status domain.OrderStatus, note string) error
	AddNote(ctx context.Context, o *domain.Order, note string) error
	AddMeta(ctx context.Context, o *domain.Order, key, value string) error
	MarkPaid(ctx context.Context, o *domain.Order, reference string) error
}

// ReconcilerDeps holds the reconciler's collaborators.
type ReconcilerDeps struct {
	Orders       OrderStore
	Formatter    *Formatter
	Methods      *Registry
	Classifier   *Classifier
	Sender       Sender
	ProcessorURL string
	Policy       FollowUpPolicy
	Rules        []SettlementRule // nil means DefaultSettlementRules
	Observer     FollowUpObserver // optional
}

// FollowUpObserver is told how each follow-up debit ended: accepted, rejected or failed.
type FollowUpObserver interface {
	IncFollowUp(result string)
}

// Reconciler applies a verified notification to its order. It does no locking:
// callers must serialize notifications that share a unique id.
type Reconciler struct {
	orders       OrderStore
	formatter    *Formatter
	methods      *Registry
	classifier   *Classifier
	sender       Sender
	processorURL string
	policy       FollowUpPolicy
	rules        []SettlementRule
	observer     FollowUpObserver
}

func NewReconciler(deps ReconcilerDeps) *Reconciler {
	r := &Reconciler{
		orders:       deps.Orders,
		formatter:    deps.Formatter,
		methods:      deps.Methods,
		classifier:   deps.Classifier,
		sender:       deps.Sender,
		processorURL: deps.ProcessorURL,
		policy:       deps.Policy,
		rules:        deps.Rules,
		observer:     deps.Observer,
	}
	if r.formatter == nil {
		r.formatter = NewFormatter(nil)
	}
	if r.classifier == nil {
		r.classifier = NewClassifier()
	}
	if r.methods == nil {
		r.methods = NewRegistry(nil)
	}
	if r.policy == "" {
		r.policy = FollowUpWarn
	}
	if r.rules == nil {
		r.rules = DefaultSettlementRules()
	}
	return r
}

// Reconcile moves the order forward according to the notification outcome. The
// current order status is not consulted.
func (r *Reconciler) Reconcile(ctx context.Context, o *domain.Order, vn domain.VerifiedNotification) (domain.ReconciliationOutcome, error) {
	switch vn.Result {
	case domain.ResultSuccess:
		return r.reconcileSuccess(ctx, o, vn)
	case domain.ResultError:
		note := fmt.Sprintf("Payment failed: %s %s", vn.ErrorCode, vn.ErrorMessage)
		if err := r.orders.UpdateStatus(ctx, o, domain.OrderFailed, note); err != nil {
			return domain.ReconciliationOutcome{}, err
		}
		return domain.ReconciliationOutcome{Kind: domain.RedirectToCancel, ErrorCode: vn.ErrorCode}, nil
	case domain.ResultPending:
		return domain.ReconciliationOutcome{Kind: domain.RedirectToReceivedAfterCartClear}, nil
	default:
		return domain.ReconciliationOutcome{}, &domain.ClassificationError{
			TransactionID: vn.Notification.TransactionID(),
			Reason:        fmt.Sprintf("unclassified outcome %q", vn.Result),
		}
	}
}

func (r *Reconciler) reconcileSuccess(ctx context.Context, o *domain.Order, vn domain.VerifiedNotification) (domain.ReconciliationOutcome, error) {
	out := domain.ReconciliationOutcome{Kind: domain.RedirectToReceived}

	if text, ok := r.formatter.Format(vn); ok {
		if err := r.orders.AddMeta(ctx, o, domain.MetaPaymentInfo, text); err != nil {
			return domain.ReconciliationOutcome{}, err
		}
	}

	if vn.Code.IsRegistration() && FollowUpSent(o, vn) {
		slog.Warn("follow-up debit already sent for this registration, not sending again",
			"order_id", o.OrderID, "unique_id", vn.Notification.UniqueID())
	} else if vn.Code.IsRegistration() {
		if err := r.orders.AddMeta(ctx, o, domain.MetaRegistrationID, vn.Notification.UniqueID()); err != nil {
			return domain.ReconciliationOutcome{}, err
		}
		err := r.followUp(ctx, o, vn)
		var fe *domain.FollowUpDispatchError
		if err != nil && !errors.As(err, &fe) {
			return domain.ReconciliationOutcome{}, err
		}
		r.observeFollowUp(err)
		if fe != nil {
			if r.policy == FollowUpFail {
				return r.failOnFollowUp(ctx, o, fe)
			}
			if err := r.warnOnFollowUp(ctx, o, fe); err != nil {
				return domain.ReconciliationOutcome{}, err
			}
			out.Warning = fe.Error()
		}
	}

	rule, ok := MatchSettlementRule(r.rules, vn.Code)
	if !ok {
		// A rule table without a catch-all leaves the order untouched.
		slog.Warn("no settlement rule matched", "order_id", o.OrderID, "payment_code", vn.Code.String())
		return out, nil
	}
	if err := rule.Apply(ctx, r.orders, o, vn); err != nil {
		return domain.ReconciliationOutcome{}, err
	}
	return out, nil
}

// followUp sends the debit on registration and classifies the processor's answer.
// Everything that goes wrong with the follow-up itself comes back as a
// *domain.FollowUpDispatchError. A failed marker write is returned as is and
// nothing is sent.
func (r *Reconciler) followUp(ctx context.Context, o *domain.Order, vn domain.VerifiedNotification) error {
	dispatchErr := func(code, msg string, err error) error {
		return &domain.FollowUpDispatchError{OrderID: o.OrderID, Code: code, Message: msg, Err: err}
	}
	if r.sender == nil {
		return dispatchErr("", "", errors.New("no processor sender configured"))
	}
	h, err := r.methods.LookupRegistering(vn.Code.Method)
	if err != nil {
		return dispatchErr("", "", err)
	}
	req := h.DebitOnRegistration(o, vn)
	if err := validate.Struct(req); err != nil {
		return dispatchErr("", "", fmt.Errorf("invalid follow-up request: %w", err))
	}

	// The marker goes first: a debit that may have left must never be sent twice.
	if err := r.orders.AddMeta(ctx, o, domain.MetaFollowUpSent, vn.Notification.UniqueID()); err != nil {
		return err
	}
	_, resp, err := r.sender.Send(ctx, r.processorURL, req.Payload())
	if err != nil {
		return dispatchErr("", "", err)
	}
	result, err := r.classifier.Classify(resp)
	if err != nil {
		return dispatchErr("", "", err)
	}
	if result.IsError() {
		return dispatchErr(result.ErrorCode, result.ErrorMessage, nil)
	}
	slog.Info("follow-up debit accepted",
		"order_id", o.OrderID,
		"payment_code", req.Code,
		"reference_id", req.ReferenceID,
		"result", string(result.Result),
		"unique_id", resp.UniqueID(),
	)
	return nil
}

// FollowUpSent reports whether the debit for vn's registration was already handed
// to the processor, successfully or not.
func FollowUpSent(o *domain.Order, vn domain.VerifiedNotification) bool {
	uid := vn.Notification.UniqueID()
	return uid != "" && o.Meta(domain.MetaFollowUpSent) == uid
}

func (r *Reconciler) observeFollowUp(err error) {
	if r.observer == nil {
		return
	}
	var fe *domain.FollowUpDispatchError
	switch {
	case err == nil:
		r.observer.IncFollowUp("accepted")
	case errors.As(err, &fe) && fe.Code != "":
		r.observer.IncFollowUp("rejected")
	default:
		r.observer.IncFollowUp("failed")
	}
}

func (r *Reconciler) failOnFollowUp(ctx context.Context, o *domain.Order, fe *domain.FollowUpDispatchError) (domain.ReconciliationOutcome, error) {
	slog.Warn("follow-up debit failed, failing order", "order_id", o.OrderID, "err", fe)
	if err := r.orders.UpdateStatus(ctx, o, domain.OrderFailed, "Debit on registration failed: "+fe.Error()); err != nil {
		return domain.ReconciliationOutcome{}, err
	}
	code := fe.Code
	if code == "" {
		code = followUpTransportCode
	}
	return domain.ReconciliationOutcome{Kind: domain.RedirectToCancel, ErrorCode: code}, nil
}

// warnOnFollowUp keeps the registration and leaves a trail on the order for the merchant.
func (r *Reconciler) warnOnFollowUp(ctx context.Context, o *domain.Order, fe *domain.FollowUpDispatchError) error {
	slog.Warn("follow-up debit failed", "order_id", o.OrderID, "err", fe)
	if err := r.orders.AddNote(ctx, o, "Warning: debit on registration failed: "+fe.Error()); err != nil {
		return err
	}
	return r.orders.AddMeta(ctx, o, domain.MetaFollowUpWarning, fe.Error())
}
